package main

import (
	"github.com/apex/log"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/a-pavithraa/aws-helpers/ec2"
)

func ec2Wrapper(cCtx *cli.Context) (ec2.ServiceWrapper, error) {
	client, err := ec2.Client(cCtx.Context, awsOptions(cCtx)...)
	if err != nil {
		return ec2.ServiceWrapper{}, err
	}
	return ec2.ServiceWrapper{Client: client}, nil
}

func instanceFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "instance-id", Aliases: []string{"i"}, Usage: "Instance id"}
}

func ec2Command() *cli.Command {
	bootstrapFlags := []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{Name: "vpc-name", Value: ec2.DefaultVpcName, Usage: "Name tag of the VPC"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "vpc-cidr", Value: ec2.DefaultVpcCidr, Usage: "VPC CIDR block"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "subnet-cidr", Value: ec2.DefaultSubnetCidr, Usage: "Subnet CIDR block"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "security-group", Value: ec2.DefaultSecurityGroupName, Usage: "Security group name"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "key-name", Value: ec2.DefaultKeyName, Usage: "Key pair name"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "key-file", Usage: "Where to write the private key, defaults to <key-name>.pem"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "image-id", Usage: "AMI id of the instance"}),
		altsrc.NewStringFlag(&cli.StringFlag{Name: "instance-type", Value: ec2.DefaultInstanceType, Usage: "Instance type"}),
	}

	return &cli.Command{
		Name:  "ec2",
		Usage: "Compute instances, key pairs, security groups and addresses",
		Subcommands: []*cli.Command{
			{
				Name:  "describe-instances",
				Usage: "Describes every instance",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					resp, err := wrapper.DescribeInstances(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, resp.Reservations)
				},
			},
			{
				Name:  "monitor",
				Usage: "Turns detailed monitoring on or off",
				Flags: []cli.Flag{
					instanceFlag(),
					&cli.BoolFlag{Name: "off", Usage: "Disable monitoring instead"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "instance-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					states, err := wrapper.ToggleMonitoring(cCtx.Context, cCtx.String("instance-id"), !cCtx.Bool("off"))
					if err != nil {
						return err
					}
					return printResult(cCtx, states)
				},
			},
			{
				Name:  "start",
				Usage: "Starts an instance after a dry-run permission check",
				Flags: []cli.Flag{instanceFlag()},
				Action: func(cCtx *cli.Context) error {
					return toggleInstance(cCtx, true)
				},
			},
			{
				Name:  "stop",
				Usage: "Stops an instance after a dry-run permission check",
				Flags: []cli.Flag{instanceFlag()},
				Action: func(cCtx *cli.Context) error {
					return toggleInstance(cCtx, false)
				},
			},
			{
				Name:  "reboot",
				Usage: "Reboots an instance after a dry-run permission check",
				Flags: []cli.Flag{instanceFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "instance-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.RebootInstance(cCtx.Context, cCtx.String("instance-id"))
				},
			},
			keyPairCommand(),
			{
				Name:  "regions",
				Usage: "Lists the regions enabled for the account",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					regions, err := wrapper.DescribeRegions(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, regions)
				},
			},
			{
				Name:  "availability-zones",
				Usage: "Lists the availability zones of the region",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					zones, err := wrapper.DescribeAvailabilityZones(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, zones)
				},
			},
			securityGroupCommand(),
			addressCommand(),
			{
				Name:   "bootstrap-network",
				Usage:  "Creates a VPC with a public subnet, an SSH-only security group, a key pair and one instance",
				Flags:  bootstrapFlags,
				Before: altsrc.InitInputSourceWithContext(bootstrapFlags, altsrc.NewYamlSourceFromFlagFunc("config")),
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "image-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					result, err := wrapper.BootstrapNetwork(cCtx.Context, ec2.NetworkParams{
						VpcName:           cCtx.String("vpc-name"),
						VpcCidr:           cCtx.String("vpc-cidr"),
						SubnetCidr:        cCtx.String("subnet-cidr"),
						SecurityGroupName: cCtx.String("security-group"),
						KeyName:           cCtx.String("key-name"),
						KeyFile:           cCtx.String("key-file"),
						ImageId:           cCtx.String("image-id"),
						InstanceType:      cCtx.String("instance-type"),
					})
					if result != nil {
						if printErr := printResult(cCtx, result); printErr != nil && err == nil {
							err = printErr
						}
					}
					return err
				},
			},
		},
	}
}

func toggleInstance(cCtx *cli.Context, on bool) error {
	if err := requireFlags(cCtx, "instance-id"); err != nil {
		return err
	}
	wrapper, err := ec2Wrapper(cCtx)
	if err != nil {
		return err
	}
	changes, err := wrapper.ToggleInstance(cCtx.Context, cCtx.String("instance-id"), on)
	if err != nil {
		return err
	}
	return printResult(cCtx, changes)
}

func keyPairCommand() *cli.Command {
	nameFlag := &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Key pair name"}
	return &cli.Command{
		Name:  "key-pairs",
		Usage: "Lists, creates and deletes key pairs",
		Subcommands: []*cli.Command{
			{
				Name: "list",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					pairs, err := wrapper.DescribeKeyPairs(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, pairs)
				},
			},
			{
				Name:  "create",
				Usage: "Creates a key pair and prints it, private key material included",
				Flags: []cli.Flag{nameFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					pair, err := wrapper.CreateKeyPair(cCtx.Context, cCtx.String("name"))
					if err != nil {
						return err
					}
					return printResult(cCtx, pair)
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{nameFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteKeyPair(cCtx.Context, cCtx.String("name"))
				},
			},
		},
	}
}

func securityGroupCommand() *cli.Command {
	groupFlag := &cli.StringFlag{Name: "group-id", Aliases: []string{"g"}, Usage: "Security group id"}
	return &cli.Command{
		Name:  "security-groups",
		Usage: "Describes, creates and deletes security groups",
		Subcommands: []*cli.Command{
			{
				Name:  "describe",
				Flags: []cli.Flag{groupFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "group-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					resp, err := wrapper.DescribeSecurityGroup(cCtx.Context, cCtx.String("group-id"))
					if err != nil {
						return err
					}
					return printResult(cCtx, resp.SecurityGroups)
				},
			},
			{
				Name:  "create",
				Usage: "Creates a group in the first VPC and opens its ingress rules",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Group name"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Group description"},
					&cli.StringSliceFlag{Name: "ingress", Usage: "protocol:port[-port]:cidr, repeatable; defaults to tcp 80 and 22 from anywhere"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "name", "description"); err != nil {
						return err
					}
					var rules []ec2.IngressRule
					for _, raw := range cCtx.StringSlice("ingress") {
						rule, err := ec2.ParseIngressRule(raw)
						if err != nil {
							return err
						}
						rules = append(rules, rule)
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					groupId, err := wrapper.CreateSecurityGroup(cCtx.Context, cCtx.String("name"), cCtx.String("description"), rules)
					if groupId != "" {
						log.WithField("group", groupId).Info("security group ready")
					}
					return err
				},
			},
			{
				Name:  "delete",
				Flags: []cli.Flag{groupFlag},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "group-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.DeleteSecurityGroup(cCtx.Context, cCtx.String("group-id"))
				},
			},
		},
	}
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:  "addresses",
		Usage: "Manages elastic IP addresses",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Lists VPC addresses",
				Action: func(cCtx *cli.Context) error {
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					addresses, err := wrapper.DescribeAddresses(cCtx.Context)
					if err != nil {
						return err
					}
					return printResult(cCtx, addresses)
				},
			},
			{
				Name:  "allocate",
				Usage: "Allocates an address and associates it with an instance",
				Flags: []cli.Flag{instanceFlag()},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "instance-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					association, err := wrapper.AllocateAndAssociateAddress(cCtx.Context, cCtx.String("instance-id"))
					if err != nil {
						return err
					}
					return printResult(cCtx, association)
				},
			},
			{
				Name:  "release",
				Flags: []cli.Flag{&cli.StringFlag{Name: "allocation-id", Aliases: []string{"a"}, Usage: "Allocation id"}},
				Action: func(cCtx *cli.Context) error {
					if err := requireFlags(cCtx, "allocation-id"); err != nil {
						return err
					}
					wrapper, err := ec2Wrapper(cCtx)
					if err != nil {
						return err
					}
					return wrapper.ReleaseAddress(cCtx.Context, cCtx.String("allocation-id"))
				},
			},
		},
	}
}
