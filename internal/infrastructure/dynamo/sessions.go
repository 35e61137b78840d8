package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lendi-api/internal/domain"
)

// SessionRepo stores login sessions and their refresh tokens.
type SessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSessionRepo(client *dynamodb.Client, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("session %s exists: %w", s.SessionID, domain.ErrConflict)
	}
	return err
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("session_id", sessionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DisableByUser turns off every enabled session the user holds. It keeps
// going past individual failures and returns them joined.
func (r *SessionRepo) DisableByUser(ctx context.Context, userID string) error {
	q := byUser(r.tableName, indexSessionUser, userID)
	q.FilterExpression = aws.String("#e = :on")
	q.ExpressionAttributeNames = map[string]string{"#e": fieldEnable}
	q.ExpressionAttributeValues[":on"] = &types.AttributeValueMemberBOOL{Value: true}
	items, err := queryUpTo(ctx, r.client, q, 0)
	if err != nil {
		return fmt.Errorf("query sessions: %w", err)
	}
	var errs []error
	for _, item := range items {
		var s domain.Session
		if err := attributevalue.UnmarshalMap(item, &s); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Update(ctx, s.SessionID, map[string]interface{}{fieldEnable: false}); err != nil {
			errs = append(errs, fmt.Errorf("disable session %s: %w", s.SessionID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *SessionRepo) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("session_id", sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(session_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return err
}

// GetByRefreshToken resolves a refresh token to its session. A disabled
// session yields ErrUnauthorized.
func (r *SessionRepo) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexRefreshToken),
		KeyConditionExpression: aws.String("refresh_token = :rt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rt": str(token),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Items[0], &s); err != nil {
		return nil, err
	}
	if !s.Enable {
		return nil, fmt.Errorf("session disabled: %w", domain.ErrUnauthorized)
	}
	return &s, nil
}

// RotateRefreshToken swaps prevToken for newToken. The write only lands while
// the session is enabled and still holds prevToken, so a refresh token can be
// exchanged once.
func (r *SessionRepo) RotateRefreshToken(ctx context.Context, sessionID, prevToken, newToken string, newExpiry int64) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldRefreshToken:     newToken,
		fieldRefreshExpiresAt: newExpiry,
		fieldUpdatedAt:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#rt_prev"] = fieldRefreshToken
	ue.Names["#en"] = fieldEnable
	ue.Values[":rt_prev"] = str(prevToken)
	ue.Values[":en"] = &types.AttributeValueMemberBOOL{Value: true}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("session_id", sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#rt_prev = :rt_prev AND #en = :en"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("refresh token already used: %w", domain.ErrUnauthorized)
	}
	return err
}
