package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemUpdate_RequiresUnusedAndUnexpired(t *testing.T) {
	r := NewAdminInviteRepo(nil, "admin_invites", "users")
	now := time.Unix(1_700_000_000, 0)

	item, err := r.redeemUpdate("inv-1", "u-9", now)
	require.NoError(t, err)
	require.NotNil(t, item.Update)
	up := item.Update

	assert.Equal(t, "admin_invites", aws.ToString(up.TableName))
	assert.Equal(t, strKey("invite_id", "inv-1"), up.Key)
	assert.Equal(t, "#used_prev = :unused AND #exp > :now", aws.ToString(up.ConditionExpression))
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", aws.ToString(up.UpdateExpression))
	assert.Equal(t, "used", up.ExpressionAttributeNames["#used_prev"])
	assert.Equal(t, "expires_at", up.ExpressionAttributeNames["#exp"])
	assert.Equal(t, "used", up.ExpressionAttributeNames["#f1"])
	assert.Equal(t, "used_by", up.ExpressionAttributeNames["#f2"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: false}, up.ExpressionAttributeValues[":unused"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, up.ExpressionAttributeValues[":v1"])
	assert.Equal(t, str("u-9"), up.ExpressionAttributeValues[":v2"])
	assert.Equal(t, num(1_700_000_000), up.ExpressionAttributeValues[":now"])
}

func TestAdminInviteTable_IndexesToken(t *testing.T) {
	var spec tableSpec
	for _, s := range schema(testTables()) {
		if s.name == "admin_invites" {
			spec = s
		}
	}
	in := spec.input()

	require.Len(t, in.GlobalSecondaryIndexes, 1)
	assert.Equal(t, indexInviteToken, aws.ToString(in.GlobalSecondaryIndexes[0].IndexName))
	assert.Equal(t, "token", aws.ToString(in.GlobalSecondaryIndexes[0].KeySchema[0].AttributeName))
	assert.Equal(t, "invite_id", aws.ToString(in.KeySchema[0].AttributeName))
}
