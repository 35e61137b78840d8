package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// queryUpTo runs input through the paginator and stops once max items have
// been collected. max <= 0 collects everything.
func queryUpTo(ctx context.Context, client *dynamodb.Client, input *dynamodb.QueryInput, max int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(client, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if max > 0 && len(items) >= max {
			return items[:max], nil
		}
	}
	return items, nil
}

// queryCount returns the number of items matched by input, following
// LastEvaluatedKey until the query is exhausted.
func queryCount(ctx context.Context, client *dynamodb.Client, input *dynamodb.QueryInput) (int, error) {
	input.Select = types.SelectCount
	total := 0
	p := dynamodb.NewQueryPaginator(client, input)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

// byUser builds a newest-first query on a user_id keyed index.
func byUser(table, index, userID string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(table),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": str(userID),
		},
		ScanIndexForward: aws.Bool(false),
	}
}
