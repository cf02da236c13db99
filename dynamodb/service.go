package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

// TableWaitTimeout bounds how long CreateTable waits for the table to exist.
const TableWaitTimeout = 5 * time.Minute

func Client(ctx context.Context, opts ...common.Option) (*dynamodb.Client, error) {
	cfg, err := common.LoadConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func isResourceNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}

func (spec TableSpec) createTableInput() (*dynamodb.CreateTableInput, error) {
	if err := common.RequireNonEmpty(map[string]string{
		"Table name":    spec.Name,
		"Partition key": spec.PartitionKey,
	}); err != nil {
		return nil, err
	}
	keyType := spec.KeyType
	if keyType == "" {
		keyType = types.ScalarAttributeTypeS
	}
	read, write := spec.ReadCapacity, spec.WriteCapacity
	if read <= 0 {
		read = DefaultCapacity
	}
	if write <= 0 {
		write = DefaultCapacity
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(spec.Name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(spec.PartitionKey), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(spec.PartitionKey), AttributeType: keyType},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(read),
			WriteCapacityUnits: aws.Int64(write),
		},
	}
	if !common.TrimAndCheckEmptyString(&spec.SortKey) {
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(spec.SortKey), KeyType: types.KeyTypeRange,
		})
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(spec.SortKey), AttributeType: keyType,
		})
	}
	return input, nil
}

// CreateTable creates the table and blocks until it is ACTIVE, returning the
// description from the final poll.
func (wrapper ServiceWrapper) CreateTable(ctx context.Context, spec TableSpec) (*types.TableDescription, error) {
	input, err := spec.createTableInput()
	if err != nil {
		return nil, err
	}
	if _, err := wrapper.Client.CreateTable(ctx, input); err != nil {
		log.WithError(err).WithField("table", spec.Name).Error("create table failed")
		return nil, err
	}

	waiter := dynamodb.NewTableExistsWaiter(wrapper.Client)
	out, err := waiter.WaitForOutput(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(spec.Name),
	}, TableWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("waiting for table %q: %w", spec.Name, err)
	}
	log.WithFields(log.Fields{
		"table":      spec.Name,
		"item_count": aws.ToInt64(out.Table.ItemCount),
	}).Info("table created")
	return out.Table, nil
}

func (wrapper ServiceWrapper) DescribeTable(ctx context.Context, tableName string) (*types.TableDescription, error) {
	resp, err := wrapper.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, err
	}
	return resp.Table, nil
}

// TableExists reports whether tableName exists. Errors other than
// ResourceNotFound are returned.
func (wrapper ServiceWrapper) TableExists(ctx context.Context, tableName string) (bool, error) {
	_, err := wrapper.DescribeTable(ctx, tableName)
	switch {
	case err == nil:
		return true, nil
	case isResourceNotFound(err):
		return false, nil
	default:
		log.WithError(err).WithField("table", tableName).Warn("unable to determine if table exists")
		return false, err
	}
}

func (wrapper ServiceWrapper) DeleteTable(ctx context.Context, tableName string) (*types.TableDescription, error) {
	resp, err := wrapper.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, err
	}
	return resp.TableDescription, nil
}

// exactNumbers swaps json.Number values, as decoded from user input, for
// attributevalue.Number so that every digit reaches DynamoDB.
func exactNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		return attributevalue.Number(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for name, element := range v {
			out[name] = exactNumbers(element)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, element := range v {
			out[i] = exactNumbers(element)
		}
		return out
	}
	return v
}

func marshalItem(item Item) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(exactNumbers(item))
}

func (wrapper ServiceWrapper) PutItem(ctx context.Context, tableName string, item Item) error {
	av, err := marshalItem(item)
	if err != nil {
		return fmt.Errorf("marshalling item: %w", err)
	}
	_, err = wrapper.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	return err
}

// GetItem returns the item stored under key, or nil when there is none.
func (wrapper ServiceWrapper) GetItem(ctx context.Context, tableName string, key Item) (Item, error) {
	av, err := marshalItem(key)
	if err != nil {
		return nil, fmt.Errorf("marshalling key: %w", err)
	}
	resp, err := wrapper.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       av,
	})
	if err != nil {
		return nil, err
	}
	if resp.Item == nil {
		return nil, nil
	}
	var item Item
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshalling item: %w", err)
	}
	return item, nil
}

func (wrapper ServiceWrapper) DeleteItem(ctx context.Context, tableName string, key Item) error {
	av, err := marshalItem(key)
	if err != nil {
		return fmt.Errorf("marshalling key: %w", err)
	}
	_, err = wrapper.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key:       av,
	})
	return err
}
