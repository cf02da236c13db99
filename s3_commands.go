package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v2"

	"github.com/a-pavithraa/aws-helpers/common"
	"github.com/a-pavithraa/aws-helpers/s3"
)

func s3Wrapper(cCtx *cli.Context) (s3.ServiceWrapper, error) {
	var wrapper s3.ServiceWrapper
	if endpoint := cCtx.String("bucket-endpoint"); endpoint != "" {
		cfg, err := common.LoadConfig(cCtx.Context, awsOptions(cCtx)...)
		if err != nil {
			return wrapper, err
		}
		wrapper = s3.New(s3.EndpointClient(cfg, endpoint))
	} else {
		client, err := s3.Client(cCtx.Context, awsOptions(cCtx)...)
		if err != nil {
			return wrapper, err
		}
		wrapper = s3.New(client)
	}
	wrapper.Transfer = s3.TransferOptions{
		PartSize:    cCtx.Int64("part-size-mib") * s3.MiB,
		Concurrency: cCtx.Int("concurrency"),
	}
	return wrapper, nil
}

func transferFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: "part-size-mib", Usage: "Multipart part size and threshold in MiB (default 5)"},
		&cli.IntFlag{Name: "concurrency", Usage: "Parts transferred in parallel, 1 disables threading (default 5)"},
	}
}

func s3Command() *cli.Command {
	return &cli.Command{
		Name:  "s3",
		Usage: "Buckets, object transfers, presigned URLs and bucket configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket-endpoint", Usage: "S3 interface or access point endpoint URL"},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "create-bucket",
				Flags: []cli.Flag{bucketFlag(), stringFlag("bucket-region", "Region of the bucket, us-east-1 when empty")},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.CreateBucket(cCtx.Context, cCtx.String("bucket"), cCtx.String("bucket-region"))
				},
			},
			{
				Name:  "list-buckets",
				Usage: "Prints the name of every bucket",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					buckets, err := wrapper.ListBuckets(cCtx.Context)
					if err != nil {
						return err
					}
					names := make([]string, 0, len(buckets))
					for _, bucket := range buckets {
						names = append(names, aws.ToString(bucket.Name))
					}
					return printResult(cCtx, names)
				},
			},
			{
				Name:  "upload",
				Usage: "Uploads a local file, multipart above the part size",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Local file"},
					bucketFlag(),
					&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Object key, defaults to the file name"},
				}, transferFlags()...),
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "file", "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.UploadFile(cCtx.Context, cCtx.String("file"), cCtx.String("bucket"), cCtx.String("key"))
				},
			},
			{
				Name:  "download",
				Usage: "Downloads an object to a local file",
				Flags: append([]cli.Flag{
					bucketFlag(),
					keyFlag(),
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Local file"},
				}, transferFlags()...),
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket", "key", "file"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					n, err := wrapper.DownloadFile(cCtx.Context, cCtx.String("bucket"), cCtx.String("key"), cCtx.String("file"))
					if err != nil {
						return err
					}
					log.WithFields(log.Fields{"file": cCtx.String("file"), "bytes": n}).Info("downloaded")
					return nil
				},
			},
			{
				Name:  "presign",
				Usage: "Presigns get_object, put_object, head_object or delete_object",
				Flags: []cli.Flag{
					bucketFlag(),
					keyFlag(),
					&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Value: "get_object", Usage: "Client method to presign"},
					&cli.DurationFlag{Name: "expires", Value: s3.DefaultExpiration, Usage: "How long the URL stays valid"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket", "key"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					url, err := wrapper.PresignRequest(cCtx.Context, cCtx.String("method"),
						cCtx.String("bucket"), cCtx.String("key"), cCtx.Duration("expires"))
					if err != nil {
						return err
					}
					return printResult(cCtx, url)
				},
			},
			{
				Name:  "presign-post",
				Usage: "Presigns a browser POST upload, optionally uploading a file through it",
				Flags: []cli.Flag{
					bucketFlag(),
					keyFlag(),
					&cli.StringSliceFlag{Name: "field", Usage: "name=value form field pinned by the policy, repeatable"},
					&cli.Int64Flag{Name: "max-size", Usage: "Largest accepted upload in bytes"},
					&cli.DurationFlag{Name: "expires", Value: s3.DefaultExpiration, Usage: "How long the POST stays valid"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Upload this file with the presigned POST"},
				},
				Action: presignPost,
			},
			{
				Name:  "fetch",
				Usage: "Downloads the body behind a presigned URL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Presigned URL"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Local file, stdout when empty"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "url"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					var w io.Writer = cCtx.App.Writer
					if fileName := cCtx.String("file"); fileName != "" {
						file, err := os.Create(fileName)
						if err != nil {
							return err
						}
						defer file.Close()
						w = file
					}
					n, err := wrapper.DownloadFromPresignedURL(cCtx.Context, cCtx.String("url"), w)
					if err != nil {
						return err
					}
					log.WithField("bytes", n).Debug("fetched")
					return nil
				},
			},
			bucketPolicyCommand(),
			{
				Name:  "acl",
				Usage: "Prints the bucket ACL",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					acl, err := wrapper.GetBucketACL(cCtx.Context, cCtx.String("bucket"))
					if err != nil {
						return err
					}
					return printResult(cCtx, map[string]any{"Owner": acl.Owner, "Grants": acl.Grants})
				},
			},
			bucketWebsiteCommand(),
			bucketCORSCommand(),
			{
				Name:  "access-points",
				Usage: "Lists the access points of a bucket through S3 Control",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account-id", Usage: "Account owning the access points"},
					bucketFlag(),
					&cli.StringFlag{Name: "control-endpoint", Usage: "S3 Control VPC endpoint URL"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "account-id"); err != nil {
						return err
					}
					cfg, err := common.LoadConfig(cCtx.Context, awsOptions(cCtx)...)
					if err != nil {
						return err
					}
					control := s3.ControlWrapper{Client: s3.ControlClient(cfg, cCtx.String("control-endpoint"))}
					points, err := control.ListAccessPoints(cCtx.Context, cCtx.String("account-id"), cCtx.String("bucket"))
					if err != nil {
						return err
					}
					return printResult(cCtx, points)
				},
			},
		},
	}
}

func presignPost(cCtx *cli.Context) error {
	if err := requireFlags(cCtx, "bucket", "key"); err != nil {
		return err
	}
	fields := map[string]string{}
	for _, raw := range cCtx.StringSlice("field") {
		name, value, found := strings.Cut(raw, "=")
		if !found {
			return &common.InputError{Message: fmt.Sprintf("field %q is not name=value", raw)}
		}
		fields[name] = value
	}
	var conditions []any
	if maxSize := cCtx.Int64("max-size"); maxSize > 0 {
		conditions = append(conditions, []any{"content-length-range", 0, maxSize})
	}

	wrapper, err := s3Wrapper(cCtx)
	if err != nil {
		return err
	}
	post, err := wrapper.PresignPost(cCtx.Context, cCtx.String("bucket"), cCtx.String("key"),
		fields, conditions, cCtx.Duration("expires"))
	if err != nil {
		return err
	}
	fileName := cCtx.String("file")
	if fileName == "" {
		return printResult(cCtx, map[string]any{"url": post.URL, "fields": post.Values})
	}
	status, err := wrapper.UploadWithPresignedPost(cCtx.Context, post, fileName)
	if err != nil {
		return err
	}
	return printResult(cCtx, map[string]any{"status": status})
}

func bucketPolicyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "Gets, sets and deletes bucket policies",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					policy, err := wrapper.GetBucketPolicy(cCtx.Context, cCtx.String("bucket"))
					if err != nil {
						return err
					}
					document, err := common.ParseJSONObject(policy)
					if err != nil {
						return err
					}
					return printResult(cCtx, document)
				},
			},
			{
				Name:  "put-public-read",
				Usage: "Lets anyone read every object of the bucket",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.PutPublicReadPolicy(cCtx.Context, cCtx.String("bucket"))
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteBucketPolicy(cCtx.Context, cCtx.String("bucket"))
				},
			},
		},
	}
}

func bucketWebsiteCommand() *cli.Command {
	return &cli.Command{
		Name:  "website",
		Usage: "Gets and deletes the static website configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					website, err := wrapper.GetBucketWebsite(cCtx.Context, cCtx.String("bucket"))
					if err != nil {
						return err
					}
					return printResult(cCtx, map[string]any{
						"IndexDocument":         website.IndexDocument,
						"ErrorDocument":         website.ErrorDocument,
						"RedirectAllRequestsTo": website.RedirectAllRequestsTo,
						"RoutingRules":          website.RoutingRules,
					})
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteBucketWebsite(cCtx.Context, cCtx.String("bucket"))
				},
			},
		},
	}
}

func bucketCORSCommand() *cli.Command {
	return &cli.Command{
		Name:  "cors",
		Usage: "Gets and sets CORS rules",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					rules, err := wrapper.GetBucketCORS(cCtx.Context, cCtx.String("bucket"))
					if err != nil {
						return err
					}
					return printResult(cCtx, rules)
				},
			},
			{
				Name:  "put-default",
				Usage: "Allows authenticated GET and PUT from any origin",
				Flags: []cli.Flag{bucketFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "bucket"); err != nil {
						return err
					}
					wrapper, err := s3Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.PutBucketCORS(cCtx.Context, cCtx.String("bucket"), nil)
				},
			},
		},
	}
}
