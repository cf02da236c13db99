package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/a-pavithraa/aws-helpers/common"
	"github.com/a-pavithraa/aws-helpers/output"
)

func awsOptions(cCtx *cli.Context) []common.Option {
	return []common.Option{
		common.WithRegion(cCtx.String("region")),
		common.WithProfile(cCtx.String("profile")),
		common.WithEndpoint(cCtx.String("endpoint-url")),
	}
}

func printResult(cCtx *cli.Context, v any) error {
	return output.Print(cCtx.App.Writer, v, cCtx.String("output"), cCtx.String("query"))
}

// requireFlags fails with an InputError naming every listed flag left blank.
func requireFlags(cCtx *cli.Context, names ...string) error {
	fields := make(map[string]string, len(names))
	for _, name := range names {
		fields[fmt.Sprintf("--%s", name)] = cCtx.String(name)
	}
	return common.RequireNonEmpty(fields)
}

func stringFlag(name string, usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: name, Usage: usage}
}

func bucketFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Bucket name"}
}

func keyFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Object key"}
}

func tableFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "table", Aliases: []string{"t"}, Usage: "Table name"}
}
