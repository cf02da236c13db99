package ec2

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

func ipPermissions(rules []IngressRule) []types.IpPermission {
	permissions := make([]types.IpPermission, 0, len(rules))
	for _, rule := range rules {
		permissions = append(permissions, types.IpPermission{
			IpProtocol: aws.String(rule.Protocol),
			FromPort:   aws.Int32(rule.FromPort),
			ToPort:     aws.Int32(rule.ToPort),
			IpRanges:   []types.IpRange{{CidrIp: aws.String(rule.CidrIp)}},
		})
	}
	return permissions
}

// allPorts stands for every port, as icmp and all-protocol (-1) rules need.
const allPorts = -1

// ParseIngressRule reads a rule written as protocol:port[-port]:cidr, for
// example tcp:8000-8080:10.0.0.0/8 or icmp:-1:0.0.0.0/0.
func ParseIngressRule(s string) (IngressRule, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return IngressRule{}, &common.InputError{Message: fmt.Sprintf("ingress rule %q is not protocol:port[-port]:cidr", s)}
	}
	rule := IngressRule{Protocol: parts[0], FromPort: allPorts, ToPort: allPorts, CidrIp: parts[2]}
	if parts[1] == strconv.Itoa(allPorts) {
		return rule, nil
	}

	from, to, found := strings.Cut(parts[1], "-")
	if !found {
		to = from
	}
	fromPort, err := parsePort(from)
	if err != nil {
		return IngressRule{}, &common.InputError{Message: fmt.Sprintf("ingress rule %q: %v", s, err)}
	}
	toPort, err := parsePort(to)
	if err != nil {
		return IngressRule{}, &common.InputError{Message: fmt.Sprintf("ingress rule %q: %v", s, err)}
	}
	if fromPort > toPort {
		return IngressRule{}, &common.InputError{Message: fmt.Sprintf("ingress rule %q: port range %d-%d is inverted", s, fromPort, toPort)}
	}
	rule.FromPort, rule.ToPort = fromPort, toPort
	return rule, nil
}

func parsePort(s string) (int32, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad port %q, want 0-65535", s)
	}
	return int32(port), nil
}

func (wrapper ServiceWrapper) DescribeSecurityGroup(ctx context.Context, groupId string) (*ec2.DescribeSecurityGroupsOutput, error) {
	resp, err := wrapper.Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{groupId}})
	if err != nil {
		log.WithError(err).WithField("group", groupId).Error("describe security group failed")
		return nil, err
	}
	return resp, nil
}

// CreateSecurityGroup creates the group in the first VPC of the account and
// opens the given ingress rules, DefaultIngressRules when none are passed.
// It returns the new group id.
func (wrapper ServiceWrapper) CreateSecurityGroup(ctx context.Context, groupName string, description string, rules []IngressRule) (string, error) {
	vpcs, err := wrapper.Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	if err != nil {
		log.WithError(err).Error("describe vpcs failed")
		return "", err
	}
	input := &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(groupName),
		Description: aws.String(description),
	}
	if len(vpcs.Vpcs) > 0 {
		input.VpcId = vpcs.Vpcs[0].VpcId
	}

	created, err := wrapper.Client.CreateSecurityGroup(ctx, input)
	if err != nil {
		log.WithError(err).WithField("group", groupName).Error("create security group failed")
		return "", err
	}
	groupId := aws.ToString(created.GroupId)
	logger := log.WithFields(log.Fields{"group": groupId, "vpc": aws.ToString(input.VpcId)})
	logger.Info("security group created")

	if len(rules) == 0 {
		rules = DefaultIngressRules
	}
	_, err = wrapper.Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupId),
		IpPermissions: ipPermissions(rules),
	})
	if err != nil {
		logger.WithError(err).Error("authorize ingress failed")
		return groupId, err
	}
	logger.WithField("rules", len(rules)).Info("ingress set")
	return groupId, nil
}

func (wrapper ServiceWrapper) DeleteSecurityGroup(ctx context.Context, groupId string) error {
	_, err := wrapper.Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(groupId)})
	if err != nil {
		log.WithError(err).WithField("group", groupId).Error("delete security group failed")
		return err
	}
	log.WithField("group", groupId).Info("security group deleted")
	return nil
}
