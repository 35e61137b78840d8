package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lendi-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTables() config.DynamoTables {
	return config.DynamoTables{
		Users: "users", Sessions: "sessions", Notifications: "notifications",
		Transactions: "transactions", Investments: "investments", SupportTickets: "tickets",
		AdminInvites: "admin_invites",
	}
}

func TestSchema_CoversEveryTable(t *testing.T) {
	names := []string{}
	for _, s := range schema(testTables()) {
		names = append(names, s.name)
	}
	assert.ElementsMatch(t, []string{"users", "sessions", "notifications", "transactions", "investments", "tickets", "admin_invites"}, names)
}

func TestTableInput_DefinesEachKeyOnce(t *testing.T) {
	var inv tableSpec
	for _, s := range schema(testTables()) {
		if s.name == "investments" {
			inv = s
		}
	}
	in := inv.input()

	defs := map[string]types.ScalarAttributeType{}
	for _, d := range in.AttributeDefinitions {
		_, dup := defs[aws.ToString(d.AttributeName)]
		require.False(t, dup, aws.ToString(d.AttributeName))
		defs[aws.ToString(d.AttributeName)] = d.AttributeType
	}
	assert.Equal(t, map[string]types.ScalarAttributeType{
		"investment_id": types.ScalarAttributeTypeS,
		"user_id":       types.ScalarAttributeTypeS,
		"status":        types.ScalarAttributeTypeS,
		"end_date":      types.ScalarAttributeTypeN,
	}, defs)
	require.Len(t, in.GlobalSecondaryIndexes, 2)
	due := in.GlobalSecondaryIndexes[1]
	assert.Equal(t, indexInvestmentDue, aws.ToString(due.IndexName))
	require.Len(t, due.KeySchema, 2)
	assert.Equal(t, types.KeyTypeRange, due.KeySchema[1].KeyType)
}

func TestTableInput_HashOnlyIndex(t *testing.T) {
	in := schema(testTables())[0].input()

	assert.Equal(t, "users", aws.ToString(in.TableName))
	assert.Len(t, in.AttributeDefinitions, 4)
	assert.Len(t, in.GlobalSecondaryIndexes, 3)
	for _, ix := range in.GlobalSecondaryIndexes {
		assert.Len(t, ix.KeySchema, 1)
	}
}
