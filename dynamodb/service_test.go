package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-pavithraa/aws-helpers/common"
)

var errDummy = errors.New("fail")

type mockDynamoClient struct {
	describeErr error
	callErr     error
	stored      map[string]types.AttributeValue
	// unprocessedRounds is how many BatchWriteItem calls hand back the
	// first request of the batch as unprocessed.
	unprocessedRounds int

	createdTable *dynamodb.CreateTableInput
	putItem      *dynamodb.PutItemInput
	getKey       map[string]types.AttributeValue
	updateItem   *dynamodb.UpdateItemInput
	deleteKey    map[string]types.AttributeValue
	batchSizes   []int
	queryInput   *dynamodb.QueryInput
	scanInput    *dynamodb.ScanInput
	calls        []string
}

func (m *mockDynamoClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.calls = append(m.calls, "CreateTable")
	m.createdTable = params
	if m.callErr != nil {
		return nil, m.callErr
	}
	return &dynamodb.CreateTableOutput{TableDescription: &types.TableDescription{
		TableName:   params.TableName,
		TableStatus: types.TableStatusCreating,
	}}, nil
}

func (m *mockDynamoClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.calls = append(m.calls, "DescribeTable")
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:        params.TableName,
		TableStatus:      types.TableStatusActive,
		ItemCount:        aws.Int64(0),
		CreationDateTime: aws.Time(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}}, nil
}

func (m *mockDynamoClient) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	m.calls = append(m.calls, "DeleteTable")
	return &dynamodb.DeleteTableOutput{TableDescription: &types.TableDescription{
		TableName:   params.TableName,
		TableStatus: types.TableStatusDeleting,
	}}, nil
}

func (m *mockDynamoClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.calls = append(m.calls, "PutItem")
	m.putItem = params
	m.stored = params.Item
	return &dynamodb.PutItemOutput{}, m.callErr
}

func (m *mockDynamoClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.calls = append(m.calls, "GetItem")
	m.getKey = params.Key
	if m.callErr != nil {
		return nil, m.callErr
	}
	return &dynamodb.GetItemOutput{Item: m.stored}, nil
}

func (m *mockDynamoClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.calls = append(m.calls, "UpdateItem")
	m.updateItem = params
	if m.callErr != nil {
		return nil, m.callErr
	}
	if m.stored != nil {
		m.stored["age"] = &types.AttributeValueMemberN{Value: "26"}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamoClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.calls = append(m.calls, "DeleteItem")
	m.deleteKey = params.Key
	return &dynamodb.DeleteItemOutput{}, m.callErr
}

func (m *mockDynamoClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.calls = append(m.calls, "BatchWriteItem")
	if m.callErr != nil {
		return nil, m.callErr
	}
	out := &dynamodb.BatchWriteItemOutput{}
	for table, requests := range params.RequestItems {
		m.batchSizes = append(m.batchSizes, len(requests))
		if m.unprocessedRounds > 0 {
			m.unprocessedRounds--
			out.UnprocessedItems = map[string][]types.WriteRequest{table: requests[:1]}
		}
	}
	return out, nil
}

func userItem(name string, age string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"username": &types.AttributeValueMemberS{Value: name},
		"age":      &types.AttributeValueMemberN{Value: age},
	}
}

func (m *mockDynamoClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.calls = append(m.calls, "Query")
	m.queryInput = params
	if params.ExclusiveStartKey == nil {
		return &dynamodb.QueryOutput{
			Items:            []map[string]types.AttributeValue{userItem("johndoe", "25")},
			LastEvaluatedKey: map[string]types.AttributeValue{"username": &types.AttributeValueMemberS{Value: "johndoe"}},
		}, nil
	}
	return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{userItem("johndoe", "31")}}, nil
}

func (m *mockDynamoClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.calls = append(m.calls, "Scan")
	m.scanInput = params
	if m.callErr != nil {
		return nil, m.callErr
	}
	return &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{userItem("janedoe", "26")}}, nil
}

func TestCreateTable(t *testing.T) {
	mock := &mockDynamoClient{}
	table, err := ServiceWrapper{Client: mock}.CreateTable(context.TODO(), DefaultTableSpec())
	require.NoError(t, err)

	assert.Equal(t, "users", aws.ToString(table.TableName))
	assert.Equal(t, int64(0), aws.ToInt64(table.ItemCount))
	assert.Equal(t, []string{"CreateTable", "DescribeTable"}, mock.calls)

	input := mock.createdTable
	assert.Equal(t, []types.KeySchemaElement{
		{AttributeName: aws.String("username"), KeyType: types.KeyTypeHash},
		{AttributeName: aws.String("last_name"), KeyType: types.KeyTypeRange},
	}, input.KeySchema)
	assert.Equal(t, []types.AttributeDefinition{
		{AttributeName: aws.String("username"), AttributeType: types.ScalarAttributeTypeS},
		{AttributeName: aws.String("last_name"), AttributeType: types.ScalarAttributeTypeS},
	}, input.AttributeDefinitions)
	assert.Equal(t, int64(5), aws.ToInt64(input.ProvisionedThroughput.ReadCapacityUnits))
	assert.Equal(t, int64(5), aws.ToInt64(input.ProvisionedThroughput.WriteCapacityUnits))
}

func TestCreateTable_Variants(t *testing.T) {
	tests := []struct {
		name      string
		spec      TableSpec
		wantKeys  int
		wantRead  int64
		wantInput bool
	}{
		{
			name:     "partition key only",
			spec:     TableSpec{Name: "events", PartitionKey: "id", KeyType: types.ScalarAttributeTypeN, ReadCapacity: 10},
			wantKeys: 1,
			wantRead: 10,
		},
		{
			name:      "missing name",
			spec:      TableSpec{PartitionKey: "id"},
			wantInput: true,
		},
		{
			name:      "missing partition key",
			spec:      TableSpec{Name: "events"},
			wantInput: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDynamoClient{}
			_, err := ServiceWrapper{Client: mock}.CreateTable(context.TODO(), tt.spec)
			if tt.wantInput {
				var inputErr *common.InputError
				assert.ErrorAs(t, err, &inputErr)
				assert.Empty(t, mock.calls)
				return
			}
			require.NoError(t, err)
			assert.Len(t, mock.createdTable.KeySchema, tt.wantKeys)
			assert.Equal(t, tt.spec.KeyType, mock.createdTable.AttributeDefinitions[0].AttributeType)
			assert.Equal(t, tt.wantRead, aws.ToInt64(mock.createdTable.ProvisionedThroughput.ReadCapacityUnits))
			assert.Equal(t, int64(DefaultCapacity), aws.ToInt64(mock.createdTable.ProvisionedThroughput.WriteCapacityUnits))
		})
	}
}

func TestCreateTable_Failure(t *testing.T) {
	mock := &mockDynamoClient{callErr: errDummy}
	_, err := ServiceWrapper{Client: mock}.CreateTable(context.TODO(), DefaultTableSpec())
	assert.ErrorIs(t, err, errDummy)
	assert.Equal(t, []string{"CreateTable"}, mock.calls)
}

func TestDescribeAndDeleteTable(t *testing.T) {
	mock := &mockDynamoClient{}
	wrapper := ServiceWrapper{Client: mock}
	ctx := context.TODO()

	table, err := wrapper.DescribeTable(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "users", aws.ToString(table.TableName))
	assert.Equal(t, 2024, aws.ToTime(table.CreationDateTime).Year())

	deleted, err := wrapper.DeleteTable(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, types.TableStatusDeleting, deleted.TableStatus)
}

func TestTableExists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "exists", want: true},
		{name: "missing", err: &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}},
		{name: "denied", err: errDummy, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := ServiceWrapper{Client: &mockDynamoClient{describeErr: tt.err}}.TableExists(context.TODO(), "users")
			assert.Equal(t, tt.want, exists)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestItemLifecycle(t *testing.T) {
	mock := &mockDynamoClient{}
	wrapper := ServiceWrapper{Client: mock}
	ctx := context.TODO()
	key := Item{"username": "janedoe", "last_name": "Doe"}

	require.NoError(t, wrapper.PutItem(ctx, "users", Item{
		"username":   "janedoe",
		"last_name":  "Doe",
		"first_name": "Jane",
		"age":        25,
	}))
	assert.Equal(t, "users", aws.ToString(mock.putItem.TableName))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "25"}, mock.putItem.Item["age"])

	item, err := wrapper.GetItem(ctx, "users", key)
	require.NoError(t, err)
	assert.Equal(t, "Jane", item["first_name"])
	assert.Equal(t, float64(25), item["age"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "janedoe"}, mock.getKey["username"])

	updated, err := wrapper.UpdateItem(ctx, "users", key, Item{"age": 26})
	require.NoError(t, err)
	assert.Equal(t, float64(26), updated["age"])
	assert.Contains(t, aws.ToString(mock.updateItem.UpdateExpression), "SET #0 = :0")
	assert.Equal(t, map[string]string{"#0": "age"}, mock.updateItem.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "26"}, mock.updateItem.ExpressionAttributeValues[":0"])

	require.NoError(t, wrapper.DeleteItem(ctx, "users", key))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Doe"}, mock.deleteKey["last_name"])
}

func TestGetItem_Missing(t *testing.T) {
	item, err := ServiceWrapper{Client: &mockDynamoClient{}}.GetItem(context.TODO(), "users", Item{"username": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestUpdateItem_Errors(t *testing.T) {
	mock := &mockDynamoClient{}
	_, err := ServiceWrapper{Client: mock}.UpdateItem(context.TODO(), "users", Item{"username": "janedoe"}, nil)
	var inputErr *common.InputError
	assert.ErrorAs(t, err, &inputErr)
	assert.Empty(t, mock.calls)

	mock.callErr = errDummy
	_, err = ServiceWrapper{Client: mock}.UpdateItem(context.TODO(), "users", Item{"username": "janedoe"}, Item{"age": 1})
	assert.ErrorIs(t, err, errDummy)
	assert.Equal(t, []string{"UpdateItem"}, mock.calls)
}

func TestBatchWrite(t *testing.T) {
	items := make([]Item, 0, 60)
	for i := range 60 {
		items = append(items, Item{"username": "user", "last_name": i})
	}

	t.Run("chunks of 25", func(t *testing.T) {
		mock := &mockDynamoClient{}
		require.NoError(t, ServiceWrapper{Client: mock}.BatchWrite(context.TODO(), "users", items))
		assert.Equal(t, []int{25, 25, 10}, mock.batchSizes)
	})

	t.Run("unprocessed items are resent", func(t *testing.T) {
		mock := &mockDynamoClient{unprocessedRounds: 2}
		require.NoError(t, ServiceWrapper{Client: mock}.BatchWrite(context.TODO(), "users", items[:3]))
		assert.Equal(t, []int{3, 1, 1}, mock.batchSizes)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		mock := &mockDynamoClient{unprocessedRounds: 100}
		err := ServiceWrapper{Client: mock}.BatchWrite(context.TODO(), "users", items[:3])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "still unprocessed")
		assert.Len(t, mock.batchSizes, batchWriteAttempts)
	})

	t.Run("call failure", func(t *testing.T) {
		mock := &mockDynamoClient{callErr: errDummy}
		assert.ErrorIs(t, ServiceWrapper{Client: mock}.BatchWrite(context.TODO(), "users", items), errDummy)
	})

	t.Run("nothing to write", func(t *testing.T) {
		mock := &mockDynamoClient{}
		require.NoError(t, ServiceWrapper{Client: mock}.BatchWrite(context.TODO(), "users", nil))
		assert.Empty(t, mock.calls)
	})
}

func TestQuery(t *testing.T) {
	mock := &mockDynamoClient{}
	items, err := ServiceWrapper{Client: mock}.Query(context.TODO(), "users", "username", "johndoe")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, float64(31), items[1]["age"])
	assert.Equal(t, 2, countCalls(mock.calls, "Query"))
	assert.Equal(t, "#0 = :0", aws.ToString(mock.queryInput.KeyConditionExpression))
	assert.Equal(t, map[string]string{"#0": "username"}, mock.queryInput.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "johndoe"}, mock.queryInput.ExpressionAttributeValues[":0"])
}

func TestExactNumbers(t *testing.T) {
	ctx := context.TODO()
	mock := &mockDynamoClient{}
	wrapper := ServiceWrapper{Client: mock}

	require.NoError(t, wrapper.PutItem(ctx, "users", Item{
		"username": "janedoe",
		"id":       json.Number("9007199254740993"),
		"scores":   []any{json.Number("12345678901234567890")},
		"address":  map[string]any{"zip": json.Number("10001")},
	}))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "9007199254740993"}, mock.putItem.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberL{Value: []types.AttributeValue{
		&types.AttributeValueMemberN{Value: "12345678901234567890"},
	}}, mock.putItem.Item["scores"])
	assert.Equal(t, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"zip": &types.AttributeValueMemberN{Value: "10001"},
	}}, mock.putItem.Item["address"])

	_, err := wrapper.Query(ctx, "users", "id", json.Number("9007199254740993"))
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "9007199254740993"}, mock.queryInput.ExpressionAttributeValues[":0"])
}

func TestScan(t *testing.T) {
	mock := &mockDynamoClient{}
	items, err := ServiceWrapper{Client: mock}.Scan(context.TODO(), "users", "age", 27)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "janedoe", items[0]["username"])
	assert.Equal(t, "#0 < :0", aws.ToString(mock.scanInput.FilterExpression))
	assert.Equal(t, map[string]string{"#0": "age"}, mock.scanInput.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "27"}, mock.scanInput.ExpressionAttributeValues[":0"])

	mock.callErr = errDummy
	_, err = ServiceWrapper{Client: mock}.Scan(context.TODO(), "users", "age", 27)
	assert.ErrorIs(t, err, errDummy)
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, call := range calls {
		if call == name {
			n++
		}
	}
	return n
}
