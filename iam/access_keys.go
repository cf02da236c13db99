package iam

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

func (wrapper ServiceWrapper) CreateAccessKey(ctx context.Context, userName string) (*types.AccessKey, error) {
	result, err := wrapper.Client.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return nil, err
	}
	return result.AccessKey, nil
}

func (wrapper ServiceWrapper) ListAccessKeys(ctx context.Context, userName string) ([]types.AccessKeyMetadata, error) {
	var keys []types.AccessKeyMetadata
	paginator := iam.NewListAccessKeysPaginator(wrapper.Client, &iam.ListAccessKeysInput{
		UserName: aws.String(userName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("iam ListAccessKeys %q: %w", userName, err)
		}
		keys = append(keys, page.AccessKeyMetadata...)
	}
	return keys, nil
}

func (wrapper ServiceWrapper) GetAccessKeyLastUsed(ctx context.Context, accessKeyID string) (*types.AccessKeyLastUsed, error) {
	result, err := wrapper.Client.GetAccessKeyLastUsed(ctx, &iam.GetAccessKeyLastUsedInput{
		AccessKeyId: aws.String(accessKeyID),
	})
	if err != nil {
		return nil, err
	}
	return result.AccessKeyLastUsed, nil
}

// UpdateAccessKey sets a key's status to Active or Inactive.
func (wrapper ServiceWrapper) UpdateAccessKey(ctx context.Context, accessKeyID string, status string, userName string) error {
	keyStatus := types.StatusType(status)
	if !slices.Contains(keyStatus.Values(), keyStatus) {
		return &common.InputError{Message: fmt.Sprintf("access key status must be one of %v, got %q", keyStatus.Values(), status)}
	}
	_, err := wrapper.Client.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		AccessKeyId: aws.String(accessKeyID),
		Status:      keyStatus,
		UserName:    aws.String(userName),
	})
	return err
}

func (wrapper ServiceWrapper) DeleteAccessKey(ctx context.Context, accessKeyID string, userName string) error {
	_, err := wrapper.Client.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		AccessKeyId: aws.String(accessKeyID),
		UserName:    aws.String(userName),
	})
	return err
}
