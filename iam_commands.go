package main

import (
	"encoding/json"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v2"

	"github.com/a-pavithraa/aws-helpers/iam"
)

func iamWrapper(cCtx *cli.Context) (iam.ServiceWrapper, error) {
	client, err := iam.Client(cCtx.Context, awsOptions(cCtx)...)
	if err != nil {
		return iam.ServiceWrapper{}, err
	}
	return iam.ServiceWrapper{Client: client}, nil
}

// policyDocument returns --document, the contents of --document-file, or the
// default managed policy scoped to --resource-arn.
func policyDocument(cCtx *cli.Context) (string, error) {
	if document := cCtx.String("document"); document != "" {
		return document, nil
	}
	if fileName := cCtx.String("document-file"); fileName != "" {
		raw, err := os.ReadFile(fileName)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	if err := requireFlags(cCtx, "resource-arn"); err != nil {
		return "", err
	}
	raw, err := json.Marshal(iam.DefaultManagedPolicy(cCtx.String("resource-arn")))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func documentFlags() []cli.Flag {
	return []cli.Flag{
		stringFlag("document", "Policy document as JSON"),
		stringFlag("document-file", "File holding the policy document"),
		stringFlag("resource-arn", "Resource of the default logs and DynamoDB policy, used when no document is given"),
	}
}

func iamCommand() *cli.Command {
	return &cli.Command{
		Name:  "iam",
		Usage: "Users, policies, roles, access keys, server certificates and account aliases",
		Subcommands: []*cli.Command{
			userCommand(),
			policyCommand(),
			roleCommand(),
			accessKeyCommand(),
			certificateCommand(),
			aliasCommand(),
		},
	}
}

func userCommand() *cli.Command {
	userFlag := &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User name"}
	return &cli.Command{
		Name:  "users",
		Usage: "Creates, lists, renames and deletes users",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Flags: []cli.Flag{userFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "user"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					user, err := wrapper.CreateUser(cCtx.Context, cCtx.String("user"))
					if err != nil {
						return err
					}
					return printResult(cCtx, user)
				},
			},
			{
				Name: "list",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					users, err := wrapper.ListUsers(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, users)
				},
			},
			{
				Name:  "rename",
				Flags: []cli.Flag{userFlag, stringFlag("new-name", "New user name")},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "user", "new-name"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.UpdateUser(cCtx.Context, cCtx.String("user"), cCtx.String("new-name"))
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{userFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "user"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteUser(cCtx.Context, cCtx.String("user"))
				},
			},
		},
	}
}

func policyCommand() *cli.Command {
	arnFlag := stringFlag("policy-arn", "Policy ARN")
	roleFlag := stringFlag("role", "Role name")
	return &cli.Command{
		Name:  "policies",
		Usage: "Creates, reads, attaches and detaches managed policies",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Flags: append([]cli.Flag{stringFlag("name", "Policy name")}, documentFlags()...),
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name"); err != nil {
						return err
					}
					document, err := policyDocument(cCtx)
					if err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					policy, err := wrapper.CreatePolicy(cCtx.Context, document, cCtx.String("name"))
					if err != nil {
						return err
					}
					return printResult(cCtx, policy)
				},
			},
			{
				Name:  "get",
				Flags: []cli.Flag{arnFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "policy-arn"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					policy, err := wrapper.GetPolicy(cCtx.Context, cCtx.String("policy-arn"))
					if err != nil {
						return err
					}
					return printResult(cCtx, policy)
				},
			},
			{
				Name:  "attach",
				Flags: []cli.Flag{arnFlag, roleFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "policy-arn", "role"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.AttachRolePolicy(cCtx.Context, cCtx.String("policy-arn"), cCtx.String("role"))
				},
			},
			{
				Name:  "detach",
				Flags: []cli.Flag{arnFlag, roleFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "policy-arn", "role"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DetachRolePolicy(cCtx.Context, cCtx.String("policy-arn"), cCtx.String("role"))
				},
			},
			{
				Name:  "list-attached",
				Flags: []cli.Flag{roleFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "role"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					policies, err := wrapper.ListAttachedRolePolicies(cCtx.Context, cCtx.String("role"))
					if err != nil {
						return err
					}
					return printResult(cCtx, policies)
				},
			},
		},
	}
}

func roleCommand() *cli.Command {
	roleFlag := stringFlag("role", "Role name")
	serviceFlag := &cli.StringFlag{Name: "service", Value: "lambda.amazonaws.com", Usage: "Service principal trusted to assume the role"}
	return &cli.Command{
		Name:  "roles",
		Usage: "Checks, creates and deletes service roles",
		Subcommands: []*cli.Command{
			{
				Name:  "exists",
				Usage: "Prints the role ARN, or null when there is no such role",
				Flags: []cli.Flag{roleFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "role"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return printResult(cCtx, wrapper.CheckRoleExists(cCtx.Context, cCtx.String("role")))
				},
			},
			{
				Name:  "create",
				Flags: []cli.Flag{roleFlag, serviceFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "role", "service"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					role, err := wrapper.NewRole(cCtx.Context, cCtx.String("role"), iam.ServiceTrustPolicy(cCtx.String("service")))
					if err != nil {
						return err
					}
					return printResult(cCtx, role)
				},
			},
			{
				Name:  "ensure",
				Usage: "Creates the role when missing and gives it a policy when it has none",
				Flags: []cli.Flag{roleFlag, serviceFlag, stringFlag("document", "Policy document as JSON")},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "role", "service"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					roleArn, err := wrapper.EnsureRole(cCtx.Context, cCtx.String("role"), cCtx.String("service"), cCtx.String("document"))
					if err != nil {
						return err
					}
					return printResult(cCtx, aws.ToString(roleArn))
				},
			},
			{
				Name:  "delete",
				Usage: "Detaches every managed policy, then deletes the role",
				Flags: []cli.Flag{roleFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "role"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteRole(cCtx.Context, cCtx.String("role"))
				},
			},
		},
	}
}

func accessKeyCommand() *cli.Command {
	userFlag := &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User name"}
	keyIdFlag := stringFlag("key-id", "Access key id")
	return &cli.Command{
		Name:  "access-keys",
		Usage: "Creates, lists, inspects, toggles and deletes access keys",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Flags: []cli.Flag{userFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "user"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					key, err := wrapper.CreateAccessKey(cCtx.Context, cCtx.String("user"))
					if err != nil {
						return err
					}
					return printResult(cCtx, key)
				},
			},
			{
				Name:  "list",
				Flags: []cli.Flag{userFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "user"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					keys, err := wrapper.ListAccessKeys(cCtx.Context, cCtx.String("user"))
					if err != nil {
						return err
					}
					return printResult(cCtx, keys)
				},
			},
			{
				Name:  "last-used",
				Flags: []cli.Flag{keyIdFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "key-id"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					lastUsed, err := wrapper.GetAccessKeyLastUsed(cCtx.Context, cCtx.String("key-id"))
					if err != nil {
						return err
					}
					return printResult(cCtx, lastUsed)
				},
			},
			{
				Name:  "update",
				Usage: "Sets a key Active or Inactive",
				Flags: []cli.Flag{keyIdFlag, userFlag, stringFlag("status", "Active or Inactive")},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "key-id", "user", "status"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.UpdateAccessKey(cCtx.Context, cCtx.String("key-id"), cCtx.String("status"), cCtx.String("user"))
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{keyIdFlag, userFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "key-id", "user"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteAccessKey(cCtx.Context, cCtx.String("key-id"), cCtx.String("user"))
				},
			},
		},
	}
}

func certificateCommand() *cli.Command {
	nameFlag := &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Certificate name"}
	return &cli.Command{
		Name:  "server-certificates",
		Usage: "Lists, reads, renames and deletes server certificates",
		Subcommands: []*cli.Command{
			{
				Name: "list",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					certificates, err := wrapper.ListServerCertificates(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, certificates)
				},
			},
			{
				Name:  "get",
				Flags: []cli.Flag{nameFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					certificate, err := wrapper.GetServerCertificate(cCtx.Context, cCtx.String("name"))
					if err != nil {
						return err
					}
					return printResult(cCtx, certificate)
				},
			},
			{
				Name:  "rename",
				Flags: []cli.Flag{nameFlag, stringFlag("new-name", "New certificate name")},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name", "new-name"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.UpdateServerCertificate(cCtx.Context, cCtx.String("name"), cCtx.String("new-name"))
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{nameFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteServerCertificate(cCtx.Context, cCtx.String("name"))
				},
			},
		},
	}
}

func aliasCommand() *cli.Command {
	aliasFlag := &cli.StringFlag{Name: "alias", Aliases: []string{"a"}, Usage: "Account alias"}
	return &cli.Command{
		Name:  "account-aliases",
		Usage: "Creates, lists and deletes the account alias",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Flags: []cli.Flag{aliasFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "alias"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					if err := wrapper.CreateAccountAlias(cCtx.Context, cCtx.String("alias")); err != nil {
						return err
					}
					log.WithField("alias", cCtx.String("alias")).Info("account alias created")
					return nil
				},
			},
			{
				Name: "list",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					aliases, err := wrapper.ListAccountAliases(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, aliases)
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{aliasFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "alias"); err != nil {
						return err
					}
					wrapper, err := iamWrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteAccountAlias(cCtx.Context, cCtx.String("alias"))
				},
			},
		},
	}
}
