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

// TicketRepo provides typed DynamoDB operations for the support tickets table.
type TicketRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTicketRepo(client *dynamodb.Client, tableName string) *TicketRepo {
	return &TicketRepo{client: client, tableName: tableName}
}

func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(ticket_id)"),
	})
	return err
}

func (r *TicketRepo) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("ticket_id", ticketID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("ticket not found: %w", domain.ErrNotFound)
	}
	var t domain.Ticket
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepo) ListForUser(ctx context.Context, userID string) ([]domain.Ticket, error) {
	items, err := queryUpTo(ctx, r.client, byUser(r.tableName, indexTicketUser, userID), 0)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	tickets := make([]domain.Ticket, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// AppendReply atomically appends reply to the ticket's conversation.
func (r *TicketRepo) AppendReply(ctx context.Context, ticketID string, reply domain.TicketReply) error {
	av, err := attributevalue.Marshal([]domain.TicketReply{reply})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("ticket_id", ticketID),
		UpdateExpression:    aws.String("SET #r = list_append(if_not_exists(#r, :empty), :r), #u = :now"),
		ConditionExpression: aws.String("attribute_exists(ticket_id)"),
		ExpressionAttributeNames: map[string]string{
			"#r": fieldReplies,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r":     av,
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":now":   str(time.Now().UTC().Format(time.RFC3339Nano)),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("ticket not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *TicketRepo) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    status,
		fieldUpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("ticket_id", ticketID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(ticket_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("ticket not found: %w", domain.ErrNotFound)
	}
	return err
}
