package ec2

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

const vpcAvailableTimeout = 5 * time.Minute

func (p *NetworkParams) applyDefaults() {
	if common.TrimAndCheckEmptyString(&p.VpcName) {
		p.VpcName = DefaultVpcName
	}
	if common.TrimAndCheckEmptyString(&p.VpcCidr) {
		p.VpcCidr = DefaultVpcCidr
	}
	if common.TrimAndCheckEmptyString(&p.SubnetCidr) {
		p.SubnetCidr = DefaultSubnetCidr
	}
	if common.TrimAndCheckEmptyString(&p.SecurityGroupName) {
		p.SecurityGroupName = DefaultSecurityGroupName
	}
	if common.TrimAndCheckEmptyString(&p.KeyName) {
		p.KeyName = DefaultKeyName
	}
	if common.TrimAndCheckEmptyString(&p.KeyFile) {
		p.KeyFile = p.KeyName + ".pem"
	}
	if common.TrimAndCheckEmptyString(&p.InstanceType) {
		p.InstanceType = DefaultInstanceType
	}
}

// BootstrapNetwork builds a public VPC with one subnet, an SSH-only security
// group and a key pair, then launches one instance into it. The private key is
// written to params.KeyFile. On failure the result lists what was already
// created so it can be cleaned up.
func (wrapper ServiceWrapper) BootstrapNetwork(ctx context.Context, params NetworkParams) (*NetworkResult, error) {
	params.applyDefaults()
	if common.TrimAndCheckEmptyString(&params.ImageId) {
		return nil, &common.InputError{Message: "Image id must be specified."}
	}
	result := &NetworkResult{}

	vpc, err := wrapper.Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(params.VpcCidr),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeVpc,
			Tags:         []types.Tag{{Key: aws.String("Name"), Value: aws.String(params.VpcName)}},
		}},
	})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateVpc: %w", err)
	}
	result.VpcId = aws.ToString(vpc.Vpc.VpcId)
	logger := log.WithField("vpc", result.VpcId)

	waiter := ec2.NewVpcAvailableWaiter(wrapper.Client)
	if err := waiter.Wait(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{result.VpcId}}, vpcAvailableTimeout); err != nil {
		return result, fmt.Errorf("waiting for vpc %q: %w", result.VpcId, err)
	}
	logger.Info("vpc available")

	// Public DNS hostnames so the instance is reachable over SSH by name.
	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(result.VpcId), EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(result.VpcId), EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := wrapper.Client.ModifyVpcAttribute(ctx, attr); err != nil {
			return result, fmt.Errorf("ec2 ModifyVpcAttribute %q: %w", result.VpcId, err)
		}
	}

	igw, err := wrapper.Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateInternetGateway: %w", err)
	}
	result.InternetGatewayId = aws.ToString(igw.InternetGateway.InternetGatewayId)
	_, err = wrapper.Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(result.InternetGatewayId),
		VpcId:             aws.String(result.VpcId),
	})
	if err != nil {
		return result, fmt.Errorf("ec2 AttachInternetGateway %q: %w", result.InternetGatewayId, err)
	}

	routeTable, err := wrapper.Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{VpcId: aws.String(result.VpcId)})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateRouteTable: %w", err)
	}
	result.RouteTableId = aws.ToString(routeTable.RouteTable.RouteTableId)
	_, err = wrapper.Client.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(result.RouteTableId),
		DestinationCidrBlock: aws.String("0.0.0.0/0"),
		GatewayId:            aws.String(result.InternetGatewayId),
	})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateRoute %q: %w", result.RouteTableId, err)
	}

	subnet, err := wrapper.Client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		CidrBlock: aws.String(params.SubnetCidr),
		VpcId:     aws.String(result.VpcId),
	})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateSubnet: %w", err)
	}
	result.SubnetId = aws.ToString(subnet.Subnet.SubnetId)
	_, err = wrapper.Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(result.RouteTableId),
		SubnetId:     aws.String(result.SubnetId),
	})
	if err != nil {
		return result, fmt.Errorf("ec2 AssociateRouteTable %q: %w", result.SubnetId, err)
	}

	group, err := wrapper.Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(params.SecurityGroupName),
		Description: aws.String("only allow SSH traffic"),
		VpcId:       aws.String(result.VpcId),
	})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateSecurityGroup: %w", err)
	}
	result.SecurityGroupId = aws.ToString(group.GroupId)
	_, err = wrapper.Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(result.SecurityGroupId),
		IpPermissions: ipPermissions([]IngressRule{{Protocol: "tcp", FromPort: 22, ToPort: 22, CidrIp: "0.0.0.0/0"}}),
	})
	if err != nil {
		return result, fmt.Errorf("ec2 AuthorizeSecurityGroupIngress %q: %w", result.SecurityGroupId, err)
	}

	keyPair, err := wrapper.Client.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{KeyName: aws.String(params.KeyName)})
	if err != nil {
		return result, fmt.Errorf("ec2 CreateKeyPair %q: %w", params.KeyName, err)
	}
	result.KeyName = params.KeyName
	if err := os.WriteFile(params.KeyFile, []byte(aws.ToString(keyPair.KeyMaterial)), 0o600); err != nil {
		return result, fmt.Errorf("writing key material to %q: %w", params.KeyFile, err)
	}
	result.KeyFile = params.KeyFile

	instances, err := wrapper.Client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(params.ImageId),
		InstanceType: types.InstanceType(params.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		KeyName:      aws.String(params.KeyName),
		NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{{
			SubnetId:                 aws.String(result.SubnetId),
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(true),
			Groups:                   []string{result.SecurityGroupId},
		}},
	})
	if err != nil {
		return result, fmt.Errorf("ec2 RunInstances: %w", err)
	}
	for _, instance := range instances.Instances {
		result.InstanceIds = append(result.InstanceIds, aws.ToString(instance.InstanceId))
	}
	logger.WithField("instances", result.InstanceIds).Info("network bootstrapped")
	return result, nil
}
