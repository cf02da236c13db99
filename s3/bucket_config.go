package s3

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

const noSuchCORSConfiguration = "NoSuchCORSConfiguration"

// DefaultCORSRules allow authenticated GET and PUT from any origin.
var DefaultCORSRules = []types.CORSRule{{
	AllowedHeaders: []string{"Authorization"},
	AllowedMethods: []string{"GET", "PUT"},
	AllowedOrigins: []string{"*"},
	ExposeHeaders:  []string{"GET", "PUT"},
	MaxAgeSeconds:  aws.Int32(3000),
}}

// PublicReadPolicy grants anonymous s3:GetObject on every object of bucket.
func PublicReadPolicy(bucket string) common.PolicyDocument {
	return common.PolicyDocument{
		Version: common.PolicyVersion,
		Statement: []common.PolicyStatement{{
			Sid:       "AddPerm",
			Effect:    "Allow",
			Principal: "*",
			Action:    []string{"s3:GetObject"},
			Resource:  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
		}},
	}
}

func (wrapper ServiceWrapper) GetBucketPolicy(ctx context.Context, bucket string) (string, error) {
	resp, err := wrapper.Client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", err
	}
	return aws.ToString(resp.Policy), nil
}

func (wrapper ServiceWrapper) PutBucketPolicy(ctx context.Context, bucket string, policy common.PolicyDocument) error {
	body, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshalling bucket policy: %w", err)
	}
	_, err = wrapper.Client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(string(body)),
	})
	return err
}

func (wrapper ServiceWrapper) PutPublicReadPolicy(ctx context.Context, bucket string) error {
	return wrapper.PutBucketPolicy(ctx, bucket, PublicReadPolicy(bucket))
}

func (wrapper ServiceWrapper) DeleteBucketPolicy(ctx context.Context, bucket string) error {
	_, err := wrapper.Client.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{Bucket: aws.String(bucket)})
	return err
}

func (wrapper ServiceWrapper) GetBucketACL(ctx context.Context, bucket string) (*s3.GetBucketAclOutput, error) {
	return wrapper.Client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(bucket)})
}

func (wrapper ServiceWrapper) GetBucketWebsite(ctx context.Context, bucket string) (*s3.GetBucketWebsiteOutput, error) {
	return wrapper.Client.GetBucketWebsite(ctx, &s3.GetBucketWebsiteInput{Bucket: aws.String(bucket)})
}

func (wrapper ServiceWrapper) DeleteBucketWebsite(ctx context.Context, bucket string) error {
	_, err := wrapper.Client.DeleteBucketWebsite(ctx, &s3.DeleteBucketWebsiteInput{Bucket: aws.String(bucket)})
	return err
}

// GetBucketCORS returns the bucket's CORS rules. A bucket without a CORS
// configuration yields an empty, non-nil slice.
func (wrapper ServiceWrapper) GetBucketCORS(ctx context.Context, bucket string) ([]types.CORSRule, error) {
	resp, err := wrapper.Client.GetBucketCors(ctx, &s3.GetBucketCorsInput{Bucket: aws.String(bucket)})
	if err != nil {
		if errorCode(err) == noSuchCORSConfiguration {
			return []types.CORSRule{}, nil
		}
		// AllAccessDisabled here means the bucket does not exist.
		log.WithError(err).WithField("bucket", bucket).Error("get bucket cors failed")
		return nil, err
	}
	return resp.CORSRules, nil
}

// PutBucketCORS replaces the bucket's CORS configuration, with
// DefaultCORSRules when rules is empty.
func (wrapper ServiceWrapper) PutBucketCORS(ctx context.Context, bucket string, rules []types.CORSRule) error {
	if len(rules) == 0 {
		rules = DefaultCORSRules
	}
	_, err := wrapper.Client.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket:            aws.String(bucket),
		CORSConfiguration: &types.CORSConfiguration{CORSRules: rules},
	})
	return err
}
