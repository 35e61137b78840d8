package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lendi-api/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
// Listings use the user_id/notification_id GSI; notification ids are ULIDs,
// so descending id order is newest first with ties broken by id.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(notification_id)"),
	})
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// ListForUser returns one page of the user's notifications and the user's
// total notification count. A page past the end yields an empty slice.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string, page, size int) ([]domain.Notification, int, error) {
	total, err := queryCount(ctx, r.client, byUser(r.tableName, indexNotificationUser, userID))
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	start, end := pageWindow(page, size, total)
	if start == end {
		return []domain.Notification{}, total, nil
	}

	items, err := queryUpTo(ctx, r.client, byUser(r.tableName, indexNotificationUser, userID), end)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	if start >= len(items) {
		return []domain.Notification{}, total, nil
	}
	notifications := make([]domain.Notification, 0, len(items)-start)
	if err := attributevalue.UnmarshalListOfMaps(items[start:], &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	return queryCount(ctx, r.client, r.unreadQuery(userID))
}

// MarkRead sets read=true when the notification exists and belongs to userID.
// It reports whether a notification was updated.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) (bool, error) {
	_, err := r.client.UpdateItem(ctx, r.markReadInput(notificationID, userID, time.Now().UTC()))
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return true, nil
}

// markReadInput conditions the update on ownership; a missing item fails the
// same condition.
func (r *NotificationRepo) markReadInput(notificationID, userID string, now time.Time) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("notification_id", notificationID),
		UpdateExpression:    aws.String("SET #r = :t, #u = :now"),
		ConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#r": fieldRead,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":now": str(now.Format(time.RFC3339Nano)),
			":uid": str(userID),
		},
	}
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many were updated.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	input := r.unreadQuery(userID)
	input.ProjectionExpression = aws.String("notification_id")
	items, err := queryUpTo(ctx, r.client, input, 0)
	if err != nil {
		return 0, fmt.Errorf("query unread notifications: %w", err)
	}
	updated := 0
	var firstErr error
	for _, item := range items {
		idAttr, ok := item["notification_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		ok, err := r.MarkRead(ctx, idAttr.Value, userID)
		if err != nil {
			slog.Warn("failed to mark notification read", "notification_id", idAttr.Value, "user_id", userID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			updated++
		}
	}
	return updated, firstErr
}

// Delete removes the notification when it belongs to userID and reports
// whether anything was removed.
func (r *NotificationRepo) Delete(ctx context.Context, notificationID, userID string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, r.deleteInput(notificationID, userID))
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return true, nil
}

func (r *NotificationRepo) deleteInput(notificationID, userID string) *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("notification_id", notificationID),
		ConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": str(userID),
		},
	}
}

func (r *NotificationRepo) unreadQuery(userID string) *dynamodb.QueryInput {
	input := byUser(r.tableName, indexNotificationUser, userID)
	input.FilterExpression = aws.String("#r = :f")
	input.ExpressionAttributeNames = map[string]string{"#r": fieldRead}
	input.ExpressionAttributeValues[":f"] = &types.AttributeValueMemberBOOL{Value: false}
	return input
}
