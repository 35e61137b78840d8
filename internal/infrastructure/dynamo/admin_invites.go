package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lendi-api/internal/domain"
)

// AdminInviteRepo stores admin invitations. Redeeming an invite writes the
// new user in the same transaction.
type AdminInviteRepo struct {
	client     *dynamodb.Client
	tableName  string
	usersTable string
}

func NewAdminInviteRepo(client *dynamodb.Client, tableName, usersTable string) *AdminInviteRepo {
	return &AdminInviteRepo{client: client, tableName: tableName, usersTable: usersTable}
}

func (r *AdminInviteRepo) Put(ctx context.Context, inv *domain.AdminInvite) error {
	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal admin invite: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(invite_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("admin invite %s exists: %w", inv.InviteID, domain.ErrConflict)
	}
	return err
}

// GetByToken resolves an invite token. Used and expired invites are returned
// as-is; callers decide whether they are still redeemable.
func (r *AdminInviteRepo) GetByToken(ctx context.Context, token string) (*domain.AdminInvite, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexInviteToken),
		KeyConditionExpression: aws.String("#t = :t"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": str(token),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("admin invite not found: %w", domain.ErrNotFound)
	}
	var inv domain.AdminInvite
	if err := attributevalue.UnmarshalMap(out.Items[0], &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Redeem marks the invite used by u and creates u in one transaction. The
// invite must be unused and unexpired at now, so an invite admits one user.
func (r *AdminInviteRepo) Redeem(ctx context.Context, inviteID string, u *domain.User, now time.Time) error {
	userItem, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	redeem, err := r.redeemUpdate(inviteID, u.UserID, now)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			redeem,
			{Put: &types.Put{
				TableName:           aws.String(r.usersTable),
				Item:                userItem,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 0):
		return fmt.Errorf("invitation expired or already used: %w", domain.ErrBadRequest)
	case cancelledAt(err, 1):
		return fmt.Errorf("user exists: %w", domain.ErrConflict)
	default:
		return fmt.Errorf("redeem admin invite: %w", err)
	}
}

func (r *AdminInviteRepo) redeemUpdate(inviteID, userID string, now time.Time) (types.TransactWriteItem, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldUsed:      true,
		fieldUsedBy:    userID,
		fieldUpdatedAt: now.UTC(),
	})
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	ue.Names["#used_prev"] = fieldUsed
	ue.Names["#exp"] = fieldExpiresAt
	ue.Values[":unused"] = &types.AttributeValueMemberBOOL{Value: false}
	ue.Values[":now"] = num(now.Unix())
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("invite_id", inviteID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#used_prev = :unused AND #exp > :now"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}}, nil
}
