package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lendi-api/internal/config"
)

// Index names shared between Bootstrap and the repositories.
const (
	indexUsername         = "username-index"
	indexEmail            = "email-index"
	indexRole             = "role-index"
	indexSessionUser      = "user_id-index"
	indexRefreshToken     = "refresh_token-index"
	indexNotificationUser = "user_id-notification_id-index"
	indexTransactionUser  = "user_id-transaction_id-index"
	indexReference        = "reference-index"
	indexInvestmentUser   = "user_id-investment_id-index"
	indexInvestmentDue    = "status-end_date-index"
	indexTicketUser       = "user_id-ticket_id-index"
	indexInviteToken      = "token-index"
)

// numericKeys lists key attributes stored as numbers; every other key is a string.
var numericKeys = map[string]bool{"end_date": true}

type indexSpec struct {
	name, hash, sort string
}

type tableSpec struct {
	name    string
	hash    string
	indexes []indexSpec
}

func schema(tables config.DynamoTables) []tableSpec {
	return []tableSpec{
		{tables.Users, "user_id", []indexSpec{
			{indexUsername, "username", ""},
			{indexEmail, "email", ""},
			{indexRole, "role", ""},
		}},
		{tables.Sessions, "session_id", []indexSpec{
			{indexSessionUser, "user_id", ""},
			{indexRefreshToken, "refresh_token", ""},
		}},
		{tables.Notifications, "notification_id", []indexSpec{
			{indexNotificationUser, "user_id", "notification_id"},
		}},
		{tables.Transactions, "transaction_id", []indexSpec{
			{indexTransactionUser, "user_id", "transaction_id"},
			{indexReference, "reference", ""},
		}},
		{tables.Investments, "investment_id", []indexSpec{
			{indexInvestmentUser, "user_id", "investment_id"},
			{indexInvestmentDue, "status", "end_date"},
		}},
		{tables.SupportTickets, "ticket_id", []indexSpec{
			{indexTicketUser, "user_id", "ticket_id"},
		}},
		{tables.AdminInvites, "invite_id", []indexSpec{
			{indexInviteToken, "token", ""},
		}},
	}
}

// Bootstrap creates every table and GSI the repositories use. Existing
// tables are left alone.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables) {
	for _, spec := range schema(tables) {
		createTable(ctx, client, spec.input())
	}
}

func (t tableSpec) input() *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(t.name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema:   keySchema(t.hash, ""),
	}
	seen := map[string]bool{}
	define := func(attr string) {
		if attr == "" || seen[attr] {
			return
		}
		seen[attr] = true
		typ := types.ScalarAttributeTypeS
		if numericKeys[attr] {
			typ = types.ScalarAttributeTypeN
		}
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr), AttributeType: typ,
		})
	}
	define(t.hash)
	for _, ix := range t.indexes {
		define(ix.hash)
		define(ix.sort)
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(ix.name),
			KeySchema:  keySchema(ix.hash, ix.sort),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	return in
}

func keySchema(hash, sort string) []types.KeySchemaElement {
	ks := []types.KeySchemaElement{{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash}}
	if sort != "" {
		ks = append(ks, types.KeySchemaElement{AttributeName: aws.String(sort), KeyType: types.KeyTypeRange})
	}
	return ks
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	var inUse *types.ResourceInUseException
	switch {
	case err == nil:
		slog.Info("created table", "table", aws.ToString(input.TableName))
	case !errors.As(err, &inUse):
		slog.Warn("could not create table", "table", aws.ToString(input.TableName), "err", err)
	}
}
