package ec2

import (
	"context"
	"errors"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/a-pavithraa/aws-helpers/common"
)

const dryRunOperation = "DryRunOperation"

func Client(ctx context.Context, opts ...common.Option) (*ec2.Client, error) {
	cfg, err := common.LoadConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

// checkDryRun interprets the error of a DryRun=true call. EC2 reports a
// permitted request as a DryRunOperation error; nil means the caller may
// proceed, anything else is returned as is.
func checkDryRun(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == dryRunOperation {
		return nil
	}
	return err
}

func (wrapper ServiceWrapper) DescribeInstances(ctx context.Context) (*ec2.DescribeInstancesOutput, error) {
	return wrapper.Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{})
}

// ToggleMonitoring enables detailed monitoring when on is set and disables it otherwise.
func (wrapper ServiceWrapper) ToggleMonitoring(ctx context.Context, instanceId string, on bool) ([]types.InstanceMonitoring, error) {
	ids := []string{instanceId}
	if on {
		resp, err := wrapper.Client.MonitorInstances(ctx, &ec2.MonitorInstancesInput{InstanceIds: ids})
		if err != nil {
			return nil, err
		}
		return resp.InstanceMonitorings, nil
	}
	resp, err := wrapper.Client.UnmonitorInstances(ctx, &ec2.UnmonitorInstancesInput{InstanceIds: ids})
	if err != nil {
		return nil, err
	}
	return resp.InstanceMonitorings, nil
}

// ToggleInstance starts (on) or stops the instance. A dry run verifies the
// caller's permissions before the real request is sent.
func (wrapper ServiceWrapper) ToggleInstance(ctx context.Context, instanceId string, on bool) ([]types.InstanceStateChange, error) {
	ids := []string{instanceId}
	logger := log.WithField("instance", instanceId)

	if on {
		_, err := wrapper.Client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids, DryRun: aws.Bool(true)})
		if err = checkDryRun(err); err != nil {
			return nil, err
		}
		resp, err := wrapper.Client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids, DryRun: aws.Bool(false)})
		if err != nil {
			logger.WithError(err).Error("start failed")
			return nil, err
		}
		logger.Info("starting")
		return resp.StartingInstances, nil
	}

	_, err := wrapper.Client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids, DryRun: aws.Bool(true)})
	if err = checkDryRun(err); err != nil {
		return nil, err
	}
	resp, err := wrapper.Client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids, DryRun: aws.Bool(false)})
	if err != nil {
		logger.WithError(err).Error("stop failed")
		return nil, err
	}
	logger.Info("stopping")
	return resp.StoppingInstances, nil
}

func (wrapper ServiceWrapper) RebootInstance(ctx context.Context, instanceId string) error {
	ids := []string{instanceId}
	logger := log.WithField("instance", instanceId)

	_, err := wrapper.Client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: ids, DryRun: aws.Bool(true)})
	if err = checkDryRun(err); err != nil {
		logger.WithError(err).Error("no permission to reboot instances")
		return err
	}
	_, err = wrapper.Client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: ids, DryRun: aws.Bool(false)})
	if err != nil {
		logger.WithError(err).Error("reboot failed")
		return err
	}
	logger.Info("reboot requested")
	return nil
}

func (wrapper ServiceWrapper) DescribeKeyPairs(ctx context.Context) ([]types.KeyPairInfo, error) {
	resp, err := wrapper.Client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
	if err != nil {
		return nil, err
	}
	return resp.KeyPairs, nil
}

func (wrapper ServiceWrapper) CreateKeyPair(ctx context.Context, keyName string) (*ec2.CreateKeyPairOutput, error) {
	return wrapper.Client.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{KeyName: aws.String(keyName)})
}

func (wrapper ServiceWrapper) DeleteKeyPair(ctx context.Context, keyName string) error {
	_, err := wrapper.Client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(keyName)})
	return err
}

// DescribeRegions lists every region that works with EC2.
func (wrapper ServiceWrapper) DescribeRegions(ctx context.Context) ([]types.Region, error) {
	resp, err := wrapper.Client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, err
	}
	return resp.Regions, nil
}

// DescribeAvailabilityZones lists the zones of the client's region only.
func (wrapper ServiceWrapper) DescribeAvailabilityZones(ctx context.Context) ([]types.AvailabilityZone, error) {
	resp, err := wrapper.Client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	if err != nil {
		return nil, err
	}
	return resp.AvailabilityZones, nil
}
