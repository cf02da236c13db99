package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/a-pavithraa/aws-helpers/common"
)

func Client(ctx context.Context, opts ...common.Option) (*iam.Client, error) {
	cfg, err := common.LoadConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return iam.NewFromConfig(cfg), nil
}

// DefaultManagedPolicy is the sample customer managed policy: log group
// creation plus item level DynamoDB access on resourceArn.
func DefaultManagedPolicy(resourceArn string) common.PolicyDocument {
	return common.PolicyDocument{
		Version: common.PolicyVersion,
		Statement: []common.PolicyStatement{
			{
				Effect:   "Allow",
				Action:   "logs:CreateLogGroup",
				Resource: resourceArn,
			},
			{
				Effect: "Allow",
				Action: []string{
					"dynamodb:DeleteItem",
					"dynamodb:GetItem",
					"dynamodb:PutItem",
					"dynamodb:Scan",
					"dynamodb:UpdateItem",
				},
				Resource: resourceArn,
			},
		},
	}
}

// ServiceTrustPolicy lets the given service principal assume a role.
func ServiceTrustPolicy(service string) common.PolicyDocument {
	return common.PolicyDocument{
		Version: common.PolicyVersion,
		Statement: []common.PolicyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// validatePolicy checks only the outline of a policy document. Statement may
// be a list or a single object; everything else is left to IAM.
func validatePolicy(policyDocument string) error {
	var document map[string]any
	if err := json.Unmarshal([]byte(policyDocument), &document); err != nil {
		return &common.InputError{Message: fmt.Sprintf("policy document is not a JSON object: %v", err)}
	}
	switch statement := document["Statement"].(type) {
	case []any:
		if len(statement) > 0 {
			return nil
		}
	case map[string]any:
		if len(statement) > 0 {
			return nil
		}
	}
	return &common.InputError{Message: "policy document has no statements"}
}

func isNoSuchEntity(err error) bool {
	var notFound *types.NoSuchEntityException
	return errors.As(err, &notFound)
}

func (wrapper ServiceWrapper) CreatePolicy(ctx context.Context, policyDocument string, policyName string) (*types.Policy, error) {
	policyDocument = strings.TrimSpace(policyDocument)
	if err := validatePolicy(policyDocument); err != nil {
		return nil, err
	}
	result, err := wrapper.Client.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyDocument: aws.String(policyDocument),
		PolicyName:     aws.String(policyName),
	})
	if err != nil {
		log.WithError(err).WithField("policy", policyName).Error("couldn't create policy")
		return nil, err
	}
	return result.Policy, nil
}

func (wrapper ServiceWrapper) GetPolicy(ctx context.Context, policyArn string) (*types.Policy, error) {
	result, err := wrapper.Client.GetPolicy(ctx, &iam.GetPolicyInput{
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return nil, err
	}
	return result.Policy, nil
}

func (wrapper ServiceWrapper) AttachRolePolicy(ctx context.Context, policyArn string, roleName string) error {
	_, err := wrapper.Client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		PolicyArn: aws.String(policyArn),
		RoleName:  aws.String(roleName),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"policy": policyArn, "role": roleName}).Error("couldn't attach policy")
	}
	return err
}

func (wrapper ServiceWrapper) DetachRolePolicy(ctx context.Context, policyArn string, roleName string) error {
	_, err := wrapper.Client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		PolicyArn: aws.String(policyArn),
		RoleName:  aws.String(roleName),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"policy": policyArn, "role": roleName}).Error("couldn't detach policy")
	}
	return err
}

func (wrapper ServiceWrapper) ListAttachedRolePolicies(ctx context.Context, roleName string) ([]types.AttachedPolicy, error) {
	var policies []types.AttachedPolicy
	paginator := iam.NewListAttachedRolePoliciesPaginator(wrapper.Client, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("iam ListAttachedRolePolicies %q: %w", roleName, err)
		}
		policies = append(policies, page.AttachedPolicies...)
	}
	return policies, nil
}

// CheckRoleExists returns the role's ARN, or nil when the role cannot be read.
func (wrapper ServiceWrapper) CheckRoleExists(ctx context.Context, roleName string) *string {
	result, err := wrapper.Client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		if !isNoSuchEntity(err) {
			log.WithError(err).WithField("role", roleName).Warn("couldn't read role")
		}
		return nil
	}
	return result.Role.Arn
}

func (wrapper ServiceWrapper) NewRole(ctx context.Context, roleName string, trustPolicy common.PolicyDocument) (*types.Role, error) {
	policyBytes, err := json.Marshal(trustPolicy)
	if err != nil {
		return nil, fmt.Errorf("marshalling trust policy for %q: %w", roleName, err)
	}
	result, err := wrapper.Client.CreateRole(ctx, &iam.CreateRoleInput{
		AssumeRolePolicyDocument: aws.String(string(policyBytes)),
		RoleName:                 aws.String(roleName),
	})
	if err != nil {
		log.WithError(err).WithField("role", roleName).Error("couldn't create role")
		return nil, err
	}
	return result.Role, nil
}

// DeleteRole detaches every managed policy from the role, then deletes it.
func (wrapper ServiceWrapper) DeleteRole(ctx context.Context, roleName string) error {
	policies, err := wrapper.ListAttachedRolePolicies(ctx, roleName)
	if err != nil {
		return err
	}
	for _, policy := range policies {
		if err := wrapper.DetachRolePolicy(ctx, aws.ToString(policy.PolicyArn), roleName); err != nil {
			return err
		}
	}
	_, err = wrapper.Client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		return fmt.Errorf("iam DeleteRole %q: %w", roleName, err)
	}
	log.WithField("role", roleName).Info("role deleted")
	return nil
}

// EnsureRole returns the ARN of roleName, creating it with a trust policy for
// servicePrincipal when missing. When the role has no managed policies and
// policyDocument is set, the document is created as "<role>_policy" and attached.
func (wrapper ServiceWrapper) EnsureRole(ctx context.Context, roleName string, servicePrincipal string, policyDocument string) (*string, error) {
	roleArn := wrapper.CheckRoleExists(ctx, roleName)
	if roleArn == nil {
		role, err := wrapper.NewRole(ctx, roleName, ServiceTrustPolicy(servicePrincipal))
		if err != nil {
			return nil, err
		}
		roleArn = role.Arn
	}

	if common.TrimAndCheckEmptyString(&policyDocument) {
		return roleArn, nil
	}
	policies, err := wrapper.ListAttachedRolePolicies(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		policy, err := wrapper.CreatePolicy(ctx, policyDocument, roleName+"_policy")
		if err != nil {
			return nil, err
		}
		if err := wrapper.AttachRolePolicy(ctx, aws.ToString(policy.Arn), roleName); err != nil {
			return nil, err
		}
	}
	return roleArn, nil
}
