package dynamo

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "username"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"email":      "a@b.com",
		"first_name": "Alice",
		"username":   "alice",
	}
	// Call twice to verify determinism.
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)

	// Keys must be sorted: email < first_name < username
	assert.Equal(t, "email", ue1.Names["#f0"])
	assert.Equal(t, "first_name", ue1.Names["#f1"])
	assert.Equal(t, "username", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"enable": true})
	require.NoError(t, err)
	av, ok := ue.Values[":v0"]
	require.True(t, ok)
	boolVal, isBool := av.(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestCancelledAt(t *testing.T) {
	err := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}
	assert.False(t, cancelledAt(err, 0))
	assert.True(t, cancelledAt(err, 1))
	assert.False(t, cancelledAt(err, 2))
	assert.False(t, cancelledAt(fmt.Errorf("wrapped: %w", errors.New("other")), 0))
	assert.True(t, cancelledAt(fmt.Errorf("wrapped: %w", err), 1))
}

func TestIsConditionFailed(t *testing.T) {
	assert.True(t, isConditionFailed(fmt.Errorf("update: %w", &types.ConditionalCheckFailedException{})))
	assert.False(t, isConditionFailed(errors.New("boom")))
}

func TestPageWindow(t *testing.T) {
	cases := []struct {
		page, size, n int
		start, end    int
	}{
		{1, 10, 25, 0, 10},
		{2, 10, 25, 10, 20},
		{3, 10, 25, 20, 25},
		{4, 10, 25, 25, 25},
		{1, 10, 0, 0, 0},
		{3, 10, 20, 20, 20},
		{math.MaxInt64/100 + 2, 100, 25, 25, 25},
		{math.MaxInt, 1, 25, 25, 25},
	}
	for _, c := range cases {
		start, end := pageWindow(c.page, c.size, c.n)
		assert.Equal(t, c.start, start, "page %d", c.page)
		assert.Equal(t, c.end, end, "page %d", c.page)
	}
}
