package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	"github.com/aws/aws-sdk-go-v2/service/s3control/types"
)

// ListAccessPoints lists the account's access points, narrowed to one bucket
// when bucket is set.
func (wrapper ControlWrapper) ListAccessPoints(ctx context.Context, accountId string, bucket string) ([]types.AccessPoint, error) {
	input := &s3control.ListAccessPointsInput{AccountId: aws.String(accountId)}
	if bucket != "" {
		input.Bucket = aws.String(bucket)
	}

	var accessPoints []types.AccessPoint
	paginator := s3control.NewListAccessPointsPaginator(wrapper.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3control ListAccessPoints %q: %w", accountId, err)
		}
		accessPoints = append(accessPoints, page.AccessPointList...)
	}
	return accessPoints, nil
}
