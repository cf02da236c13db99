package ec2

import (
	"context"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DescribeAddresses lists the Elastic IPs allocated for use in a VPC.
func (wrapper ServiceWrapper) DescribeAddresses(ctx context.Context) ([]types.Address, error) {
	resp, err := wrapper.Client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		Filters: []types.Filter{
			{Name: aws.String("domain"), Values: []string{"vpc"}},
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

// AllocateAndAssociateAddress allocates a VPC Elastic IP and associates it
// with the instance.
func (wrapper ServiceWrapper) AllocateAndAssociateAddress(ctx context.Context, instanceId string) (*ec2.AssociateAddressOutput, error) {
	allocation, err := wrapper.Client.AllocateAddress(ctx, &ec2.AllocateAddressInput{Domain: types.DomainTypeVpc})
	if err != nil {
		log.WithError(err).Error("allocate address failed")
		return nil, err
	}
	resp, err := wrapper.Client.AssociateAddress(ctx, &ec2.AssociateAddressInput{
		AllocationId: allocation.AllocationId,
		InstanceId:   aws.String(instanceId),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"allocation": aws.ToString(allocation.AllocationId),
			"instance":   instanceId,
		}).Error("associate address failed")
		return nil, err
	}
	return resp, nil
}

func (wrapper ServiceWrapper) ReleaseAddress(ctx context.Context, allocationId string) error {
	_, err := wrapper.Client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: aws.String(allocationId)})
	if err != nil {
		log.WithError(err).WithField("allocation", allocationId).Error("release address failed")
		return err
	}
	log.WithField("allocation", allocationId).Info("elastic ip released")
	return nil
}
