package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Api interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)

	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)

	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ Api = (*dynamodb.Client)(nil)

type ServiceWrapper struct {
	Client Api
}

// Item is a table item in its plain Go form. Values are marshalled with the
// attributevalue package, so numbers come back as float64. json.Number
// values are written with their exact digits.
type Item = map[string]any

const (
	DefaultTableName    = "users"
	DefaultPartitionKey = "username"
	DefaultSortKey      = "last_name"
	DefaultCapacity     = 5

	// BatchWriteSize is the most put requests DynamoDB accepts in one call.
	BatchWriteSize = 25
)

// TableSpec describes a provisioned table with a partition key and an
// optional sort key.
type TableSpec struct {
	Name          string
	PartitionKey  string
	SortKey       string
	KeyType       types.ScalarAttributeType
	ReadCapacity  int64
	WriteCapacity int64
}

// DefaultTableSpec is the users table keyed on username and last_name.
func DefaultTableSpec() TableSpec {
	return TableSpec{
		Name:          DefaultTableName,
		PartitionKey:  DefaultPartitionKey,
		SortKey:       DefaultSortKey,
		KeyType:       types.ScalarAttributeTypeS,
		ReadCapacity:  DefaultCapacity,
		WriteCapacity: DefaultCapacity,
	}
}
