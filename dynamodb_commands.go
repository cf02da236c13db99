package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/urfave/cli/v2"

	"github.com/a-pavithraa/aws-helpers/common"
	"github.com/a-pavithraa/aws-helpers/dynamodb"
)

func dynamodbWrapper(cCtx *cli.Context) (dynamodb.ServiceWrapper, error) {
	client, err := dynamodb.Client(cCtx.Context, awsOptions(cCtx)...)
	if err != nil {
		return dynamodb.ServiceWrapper{}, err
	}
	return dynamodb.ServiceWrapper{Client: client}, nil
}

// jsonFlag reads a JSON object flag that must be present.
func jsonFlag(cCtx *cli.Context, name string) (dynamodb.Item, error) {
	value, err := common.ParseJSONObject(cCtx.String(name))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, &common.InputError{Message: fmt.Sprintf("--%s cannot be empty.", name)}
	}
	return value, nil
}

func readItems(fileName string) ([]dynamodb.Item, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	var items []dynamodb.Item
	if err := common.DecodeJSON(raw, &items); err != nil {
		return nil, &common.InputError{Message: fmt.Sprintf("%s is not a JSON array of objects: %v", fileName, err)}
	}
	return items, nil
}

func dynamodbCommand() *cli.Command {
	defaults := dynamodb.DefaultTableSpec()
	table := func() *cli.StringFlag {
		flag := tableFlag()
		flag.Value = defaults.Name
		return flag
	}
	keyJSON := func() *cli.StringFlag {
		return &cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: `Item key as JSON, e.g. {"username":"janedoe","last_name":"Doe"}`}
	}

	return &cli.Command{
		Name:  "dynamodb",
		Usage: "Tables, items, batch writes, queries and scans",
		Subcommands: []*cli.Command{
			{
				Name:  "create-table",
				Usage: "Creates a provisioned table and waits until it exists",
				Flags: []cli.Flag{
					table(),
					&cli.StringFlag{Name: "partition-key", Value: defaults.PartitionKey, Usage: "Partition key attribute"},
					&cli.StringFlag{Name: "sort-key", Value: defaults.SortKey, Usage: "Sort key attribute, empty for none"},
					&cli.StringFlag{Name: "key-type", Value: string(defaults.KeyType), Usage: "Key attribute type: S, N or B"},
					&cli.Int64Flag{Name: "read-capacity", Value: defaults.ReadCapacity, Usage: "Read capacity units"},
					&cli.Int64Flag{Name: "write-capacity", Value: defaults.WriteCapacity, Usage: "Write capacity units"},
				},
				Action: func(cCtx *cli.Context) error {
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					description, err := wrapper.CreateTable(cCtx.Context, dynamodb.TableSpec{
						Name:          cCtx.String("table"),
						PartitionKey:  cCtx.String("partition-key"),
						SortKey:       cCtx.String("sort-key"),
						KeyType:       types.ScalarAttributeType(cCtx.String("key-type")),
						ReadCapacity:  cCtx.Int64("read-capacity"),
						WriteCapacity: cCtx.Int64("write-capacity"),
					})
					if err != nil {
						return err
					}
					return printResult(cCtx, map[string]any{"ItemCount": aws.ToInt64(description.ItemCount)})
				},
			},
			{
				Name:  "describe-table",
				Usage: "Prints the table name and creation time",
				Flags: []cli.Flag{table()},
				Action: func(cCtx *cli.Context) error {
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					description, err := wrapper.DescribeTable(cCtx.Context, cCtx.String("table"))
					if err != nil {
						return err
					}
					return printResult(cCtx, map[string]any{
						"TableName":        aws.ToString(description.TableName),
						"CreationDateTime": aws.ToTime(description.CreationDateTime),
					})
				},
			},
			{
				Name:  "delete-table",
				Flags: []cli.Flag{table()},
				Action: func(cCtx *cli.Context) error {
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					description, err := wrapper.DeleteTable(cCtx.Context, cCtx.String("table"))
					if err != nil {
						return err
					}
					log.WithFields(log.Fields{
						"table":  aws.ToString(description.TableName),
						"status": description.TableStatus,
					}).Info("table deleting")
					return nil
				},
			},
			{
				Name:  "put-item",
				Flags: []cli.Flag{table(), &cli.StringFlag{Name: "item", Aliases: []string{"i"}, Usage: "Item as a JSON object"}},
				Action: func(cCtx *cli.Context) error {
					item, err := jsonFlag(cCtx, "item")
					if err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.PutItem(cCtx.Context, cCtx.String("table"), item)
				},
			},
			{
				Name:  "get-item",
				Flags: []cli.Flag{table(), keyJSON()},
				Action: func(cCtx *cli.Context) error {
					key, err := jsonFlag(cCtx, "key")
					if err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					item, err := wrapper.GetItem(cCtx.Context, cCtx.String("table"), key)
					if err != nil {
						return err
					}
					return printResult(cCtx, item)
				},
			},
			{
				Name:  "update-item",
				Usage: "Sets attributes on an item and prints it as stored afterwards",
				Flags: []cli.Flag{
					table(),
					keyJSON(),
					&cli.StringFlag{Name: "set", Usage: `Attributes to set as JSON, e.g. {"age":26}`},
				},
				Action: func(cCtx *cli.Context) error {
					key, err := jsonFlag(cCtx, "key")
					if err != nil {
						return err
					}
					set, err := jsonFlag(cCtx, "set")
					if err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					item, err := wrapper.UpdateItem(cCtx.Context, cCtx.String("table"), key, set)
					if err != nil {
						return err
					}
					return printResult(cCtx, item)
				},
			},
			{
				Name:  "delete-item",
				Flags: []cli.Flag{table(), keyJSON()},
				Action: func(cCtx *cli.Context) error {
					key, err := jsonFlag(cCtx, "key")
					if err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteItem(cCtx.Context, cCtx.String("table"), key)
				},
			},
			{
				Name:  "batch-write",
				Usage: "Puts every item of a JSON array file",
				Flags: []cli.Flag{table(), &cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON array of items"}},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "file"); err != nil {
						return err
					}
					items, err := readItems(cCtx.String("file"))
					if err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					if err := wrapper.BatchWrite(cCtx.Context, cCtx.String("table"), items); err != nil {
						return err
					}
					log.WithField("items", len(items)).Info("batch written")
					return nil
				},
			},
			{
				Name:  "query",
				Usage: "Prints items whose key attribute equals a value",
				Flags: []cli.Flag{
					table(),
					&cli.StringFlag{Name: "key-name", Value: defaults.PartitionKey, Usage: "Key attribute"},
					&cli.StringFlag{Name: "value", Usage: "Key value, read as JSON when it parses"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "key-name", "value"); err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					items, err := wrapper.Query(cCtx.Context, cCtx.String("table"),
						cCtx.String("key-name"), common.ParseJSONValue(cCtx.String("value")))
					if err != nil {
						return err
					}
					return printResult(cCtx, items)
				},
			},
			{
				Name:  "scan",
				Usage: "Prints items whose attribute is less than a value",
				Flags: []cli.Flag{
					table(),
					&cli.StringFlag{Name: "attribute", Aliases: []string{"a"}, Usage: "Attribute to compare"},
					&cli.StringFlag{Name: "value", Usage: "Upper bound, read as JSON when it parses"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "attribute", "value"); err != nil {
						return err
					}
					wrapper, err := dynamodbWrapper(cCtx)
					if err != nil {
						return err
					}
					items, err := wrapper.Scan(cCtx.Context, cCtx.String("table"),
						cCtx.String("attribute"), common.ParseJSONValue(cCtx.String("value")))
					if err != nil {
						return err
					}
					return printResult(cCtx, items)
				},
			},
		},
	}
}
