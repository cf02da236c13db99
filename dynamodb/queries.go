package dynamodb

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

// batchWriteAttempts caps how often a chunk is sent while DynamoDB keeps
// handing back unprocessed items.
const batchWriteAttempts = 5

// UpdateItem sets each attribute in set on the item stored under key and
// returns the item as read back afterwards.
func (wrapper ServiceWrapper) UpdateItem(ctx context.Context, tableName string, key Item, set Item) (Item, error) {
	if len(set) == 0 {
		return nil, &common.InputError{Message: "no attributes to update"}
	}
	av, err := marshalItem(key)
	if err != nil {
		return nil, fmt.Errorf("marshalling key: %w", err)
	}

	names := slices.Sorted(maps.Keys(set))
	update := expression.Set(expression.Name(names[0]), expression.Value(exactNumbers(set[names[0]])))
	for _, name := range names[1:] {
		update = update.Set(expression.Name(name), expression.Value(exactNumbers(set[name])))
	}
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, fmt.Errorf("building update expression: %w", err)
	}

	_, err = wrapper.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       av,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, err
	}
	return wrapper.GetItem(ctx, tableName, key)
}

// BatchWrite puts items in chunks of BatchWriteSize. Items DynamoDB reports
// as unprocessed are sent again, up to batchWriteAttempts times per chunk.
func (wrapper ServiceWrapper) BatchWrite(ctx context.Context, tableName string, items []Item) error {
	written := 0
	for chunk := range slices.Chunk(items, BatchWriteSize) {
		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, item := range chunk {
			av, err := marshalItem(item)
			if err != nil {
				return fmt.Errorf("marshalling item %d: %w", written+len(requests), err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
		}

		pending := map[string][]types.WriteRequest{tableName: requests}
		for attempt := 1; len(pending[tableName]) > 0; attempt++ {
			if attempt > batchWriteAttempts {
				return fmt.Errorf("batch write to %q: %d items still unprocessed after %d attempts",
					tableName, len(pending[tableName]), batchWriteAttempts)
			}
			resp, err := wrapper.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				log.WithError(err).WithField("table", tableName).Error("batch write failed")
				return err
			}
			pending = resp.UnprocessedItems
		}
		written += len(chunk)
	}
	log.WithFields(log.Fields{"table": tableName, "items": written}).Debug("batch write done")
	return nil
}

// Query returns every item whose keyName equals keyValue, across all pages.
func (wrapper ServiceWrapper) Query(ctx context.Context, tableName string, keyName string, keyValue any) ([]Item, error) {
	keyCond := expression.Key(keyName).Equal(expression.Value(exactNumbers(keyValue)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("building key condition: %w", err)
	}

	var raw []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(wrapper.Client, &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query %q: %w", tableName, err)
		}
		raw = append(raw, page.Items...)
	}
	return unmarshalItems(raw)
}

// Scan returns every item whose attrName is less than value, across all pages.
func (wrapper ServiceWrapper) Scan(ctx context.Context, tableName string, attrName string, value any) ([]Item, error) {
	filter := expression.Name(attrName).LessThan(expression.Value(exactNumbers(value)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("building filter: %w", err)
	}

	var raw []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(wrapper.Client, &dynamodb.ScanInput{
		TableName:                 aws.String(tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan %q: %w", tableName, err)
		}
		raw = append(raw, page.Items...)
	}
	return unmarshalItems(raw)
}

func unmarshalItems(raw []map[string]types.AttributeValue) ([]Item, error) {
	items := make([]Item, 0, len(raw))
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshalling items: %w", err)
	}
	return items, nil
}
