package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/a-pavithraa/aws-helpers/common"
	"github.com/a-pavithraa/aws-helpers/output"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "yaml config file name",
		},
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				EnvVars: []string{"AWS_REGION"},
				Usage:   "AWS region",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				EnvVars: []string{"AWS_PROFILE"},
				Usage:   "Shared config profile",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:  "endpoint-url",
				Usage: "Base endpoint for every service client, e.g. a local emulator",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   output.FormatJSON,
				Usage:   "Output format: json, yaml or text",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "gjson path selecting part of the response",
			},
		),
		altsrc.NewStringFlag(
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{common.LogEnv},
				Value:   "info",
				Usage:   "debug, info, warn, error or fatal",
			},
		),
	}
}

func newApp() *cli.App {
	flags := globalFlags()
	return &cli.App{
		Name:  "aws-helpers",
		Usage: "Thin helpers over EC2, S3, DynamoDB and IAM",
		Flags: flags,
		Before: func(cCtx *cli.Context) error {
			if err := altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config"))(cCtx); err != nil {
				return err
			}
			common.InitLogger(cCtx.App.ErrWriter, cCtx.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			ec2Command(),
			s3Command(),
			dynamodbCommand(),
			iamCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}
