package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lendi-api/internal/domain"
)

// InvestmentRepo provides typed DynamoDB operations for the investments table.
type InvestmentRepo struct {
	client            *dynamodb.Client
	tableName         string
	usersTable        string
	transactionsTable string
}

func NewInvestmentRepo(client *dynamodb.Client, tableName, usersTable, transactionsTable string) *InvestmentRepo {
	return &InvestmentRepo{
		client:            client,
		tableName:         tableName,
		usersTable:        usersTable,
		transactionsTable: transactionsTable,
	}
}

// CreateWithDebit stores the investment, its ledger entry and the balance
// debit in one transaction.
func (r *InvestmentRepo) CreateWithDebit(ctx context.Context, inv *domain.Investment, ledger *domain.Transaction) error {
	invItem, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal investment: %w", err)
	}
	txItem, err := attributevalue.MarshalMap(ledger)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                invItem,
				ConditionExpression: aws.String("attribute_not_exists(investment_id)"),
			}},
			{Put: &types.Put{
				TableName: aws.String(r.transactionsTable),
				Item:      txItem,
			}},
			balanceDebit(r.usersTable, inv.UserID, inv.AmountCents),
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 2):
		return fmt.Errorf("invest %d: %w", inv.AmountCents, domain.ErrInsufficientFunds)
	case cancelledAt(err, 0):
		return fmt.Errorf("investment exists: %w", domain.ErrConflict)
	default:
		return fmt.Errorf("create investment: %w", err)
	}
}

func (r *InvestmentRepo) ListForUser(ctx context.Context, userID string) ([]domain.Investment, error) {
	items, err := queryUpTo(ctx, r.client, byUser(r.tableName, indexInvestmentUser, userID), 0)
	if err != nil {
		return nil, fmt.Errorf("query investments: %w", err)
	}
	invs := make([]domain.Investment, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// ListDue returns active investments whose end date is at or before now.
func (r *InvestmentRepo) ListDue(ctx context.Context, now time.Time) ([]domain.Investment, error) {
	items, err := queryUpTo(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexInvestmentDue),
		KeyConditionExpression: aws.String("#s = :active AND end_date <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": str(string(domain.InvestmentActive)),
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("query due investments: %w", err)
	}
	invs := make([]domain.Investment, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// Settle completes an active investment, credits principal plus profit and
// records the return in the ledger, all in one transaction. When the
// investment is no longer active ErrAlreadyProcessed is returned and the
// balance is untouched.
func (r *InvestmentRepo) Settle(ctx context.Context, inv *domain.Investment, ledger *domain.Transaction) error {
	txItem, err := attributevalue.MarshalMap(ledger)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(r.tableName),
				Key:                 strKey("investment_id", inv.InvestmentID),
				UpdateExpression:    aws.String("SET #s = :done, total_return_cents = :ret, #u = :now"),
				ConditionExpression: aws.String("#s = :active"),
				ExpressionAttributeNames: map[string]string{
					"#s": fieldStatus,
					"#u": fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":done":   str(string(domain.InvestmentCompleted)),
					":active": str(string(domain.InvestmentActive)),
					":ret":    num(ledger.AmountCents),
					":now":    str(time.Now().UTC().Format(time.RFC3339Nano)),
				},
			}},
			balanceCredit(r.usersTable, inv.UserID, ledger.AmountCents),
			{Put: &types.Put{
				TableName: aws.String(r.transactionsTable),
				Item:      txItem,
			}},
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 0):
		return fmt.Errorf("investment %s not active: %w", inv.InvestmentID, domain.ErrAlreadyProcessed)
	default:
		return fmt.Errorf("settle investment: %w", err)
	}
}
