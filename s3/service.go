package s3

import (
	"context"
	"errors"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/a-pavithraa/aws-helpers/common"
)

func Client(ctx context.Context, opts ...common.Option) (*s3.Client, error) {
	cfg, err := common.LoadConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// New wires a ServiceWrapper around a real client: presigning goes through
// the same client's config and presigned URLs are fetched with a pooled
// cleanhttp client.
func New(client *s3.Client) ServiceWrapper {
	return ServiceWrapper{
		Client:     client,
		Presigner:  s3.NewPresignClient(client),
		HTTPClient: cleanhttp.DefaultPooledClient(),
	}
}

// EndpointClient builds an S3 client that talks to a specific endpoint, such
// as an interface VPC endpoint (https://bucket.vpce-....s3.<region>.vpce.amazonaws.com)
// or an access point endpoint.
func EndpointClient(cfg aws.Config, endpointURL string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
	})
}

// ControlClient builds an S3 Control client, optionally bound to a VPC
// endpoint (https://control.vpce-....s3.<region>.vpce.amazonaws.com).
func ControlClient(cfg aws.Config, endpointURL string) *s3control.Client {
	return s3control.NewFromConfig(cfg, func(o *s3control.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// CreateBucket creates a bucket in region. With no region the bucket lands in
// us-east-1, which must not be sent as a location constraint.
func (wrapper ServiceWrapper) CreateBucket(ctx context.Context, bucket string, region string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	var optFns []func(*s3.Options)
	if !common.TrimAndCheckEmptyString(&region) {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
		// The constraint must match the region the request is sent to.
		optFns = append(optFns, func(o *s3.Options) { o.Region = region })
	}
	_, err := wrapper.Client.CreateBucket(ctx, input, optFns...)
	if err != nil {
		log.WithError(err).WithField("bucket", bucket).Error("create bucket failed")
		return err
	}
	return nil
}

func (wrapper ServiceWrapper) ListBuckets(ctx context.Context) ([]types.Bucket, error) {
	resp, err := wrapper.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	return resp.Buckets, nil
}
