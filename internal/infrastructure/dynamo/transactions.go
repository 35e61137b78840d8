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

// TransactionRepo provides typed DynamoDB operations for the transactions
// table. Every balance-affecting state change is a single TransactWriteItems
// call whose status transition is conditional on the expected prior status.
type TransactionRepo struct {
	client     *dynamodb.Client
	tableName  string
	usersTable string
}

func NewTransactionRepo(client *dynamodb.Client, tableName, usersTable string) *TransactionRepo {
	return &TransactionRepo{client: client, tableName: tableName, usersTable: usersTable}
}

func (r *TransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	item, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("transaction exists: %w", domain.ErrConflict)
	}
	return err
}

// CreateWithDebit stores tx and debits its amount from the owner's balance in
// one transaction. ErrInsufficientFunds is returned when the balance does not
// cover the amount.
func (r *TransactionRepo) CreateWithDebit(ctx context.Context, tx *domain.Transaction) error {
	put, err := r.putItem(tx)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			put,
			balanceDebit(r.usersTable, tx.UserID, tx.AmountCents),
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 1):
		return fmt.Errorf("debit %s: %w", tx.Reference, domain.ErrInsufficientFunds)
	case cancelledAt(err, 0):
		return fmt.Errorf("transaction exists: %w", domain.ErrConflict)
	default:
		return fmt.Errorf("create transaction with debit: %w", err)
	}
}

func (r *TransactionRepo) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("transaction_id", transactionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("transaction not found: %w", domain.ErrNotFound)
	}
	var tx domain.Transaction
	if err := attributevalue.UnmarshalMap(out.Item, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexReference),
		KeyConditionExpression: aws.String("#ref = :ref"),
		ExpressionAttributeNames: map[string]string{
			"#ref": "reference",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": str(reference),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("transaction %s not found: %w", reference, domain.ErrNotFound)
	}
	var tx domain.Transaction
	if err := attributevalue.UnmarshalMap(out.Items[0], &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListForUser returns one page of the user's transactions, newest first, and
// the total count.
func (r *TransactionRepo) ListForUser(ctx context.Context, userID string, page, size int) ([]domain.Transaction, int, error) {
	total, err := queryCount(ctx, r.client, byUser(r.tableName, indexTransactionUser, userID))
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	start, end := pageWindow(page, size, total)
	if start == end {
		return []domain.Transaction{}, total, nil
	}
	items, err := queryUpTo(ctx, r.client, byUser(r.tableName, indexTransactionUser, userID), end)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	if start >= len(items) {
		return []domain.Transaction{}, total, nil
	}
	txs := make([]domain.Transaction, 0, len(items)-start)
	if err := attributevalue.UnmarshalListOfMaps(items[start:], &txs); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// Transition moves a transaction from one status to another. When the stored
// status is no longer from, ErrAlreadyProcessed is returned and nothing changes.
func (r *TransactionRepo) Transition(ctx context.Context, transactionID string, from, to domain.TransactionStatus) error {
	_, err := r.client.UpdateItem(ctx, r.transitionInput(transactionID, from, to))
	if isConditionFailed(err) {
		return fmt.Errorf("transaction %s not %s: %w", transactionID, from, domain.ErrAlreadyProcessed)
	}
	return err
}

// Settle moves tx from pending to status and credits credit to the owner in
// the same transaction. A zero credit performs the transition only.
func (r *TransactionRepo) Settle(ctx context.Context, tx *domain.Transaction, status domain.TransactionStatus, credit int64) error {
	if credit == 0 {
		return r.Transition(ctx, tx.TransactionID, domain.TxPending, status)
	}
	in := r.transitionInput(tx.TransactionID, domain.TxPending, status)
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 in.TableName,
				Key:                       in.Key,
				UpdateExpression:          in.UpdateExpression,
				ConditionExpression:       in.ConditionExpression,
				ExpressionAttributeNames:  in.ExpressionAttributeNames,
				ExpressionAttributeValues: in.ExpressionAttributeValues,
			}},
			balanceCredit(r.usersTable, tx.UserID, credit),
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 0):
		return fmt.Errorf("transaction %s not pending: %w", tx.TransactionID, domain.ErrAlreadyProcessed)
	case cancelledAt(err, 1):
		return fmt.Errorf("owner of %s: %w", tx.TransactionID, domain.ErrNotFound)
	default:
		return fmt.Errorf("settle transaction: %w", err)
	}
}

func (r *TransactionRepo) transitionInput(transactionID string, from, to domain.TransactionStatus) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("transaction_id", transactionID),
		UpdateExpression:    aws.String("SET #s = :to, #u = :now"),
		ConditionExpression: aws.String("#s = :from"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   str(string(to)),
			":from": str(string(from)),
			":now":  str(time.Now().UTC().Format(time.RFC3339Nano)),
		},
	}
}

func (r *TransactionRepo) putItem(tx *domain.Transaction) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal transaction: %w", err)
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
	}}, nil
}
