package iam

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-pavithraa/aws-helpers/common"
)

type mockIAMClient struct {
	roleExists       bool
	attachedPolicies []types.AttachedPolicy
	getRoleErr       error

	calls          []string
	createdPolicy  *iam.CreatePolicyInput
	createdRole    *iam.CreateRoleInput
	updatedKey     *iam.UpdateAccessKeyInput
	detached       []string
	userPageMarker []*string
}

func (m *mockIAMClient) record(name string) {
	m.calls = append(m.calls, name)
}

func (m *mockIAMClient) CreateUser(ctx context.Context, input *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error) {
	m.record("CreateUser")
	return &iam.CreateUserOutput{User: &types.User{UserName: input.UserName}}, nil
}

// ListUsers serves two pages so the paginator has to follow the marker.
func (m *mockIAMClient) ListUsers(ctx context.Context, input *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	m.record("ListUsers")
	m.userPageMarker = append(m.userPageMarker, input.Marker)
	if input.Marker == nil {
		return &iam.ListUsersOutput{
			Users:       []types.User{{UserName: aws.String("alice")}},
			IsTruncated: true,
			Marker:      aws.String("page-2"),
		}, nil
	}
	return &iam.ListUsersOutput{Users: []types.User{{UserName: aws.String("bob")}}}, nil
}

func (m *mockIAMClient) UpdateUser(ctx context.Context, input *iam.UpdateUserInput, optFns ...func(*iam.Options)) (*iam.UpdateUserOutput, error) {
	m.record("UpdateUser")
	return &iam.UpdateUserOutput{}, nil
}

func (m *mockIAMClient) DeleteUser(ctx context.Context, input *iam.DeleteUserInput, optFns ...func(*iam.Options)) (*iam.DeleteUserOutput, error) {
	m.record("DeleteUser")
	return &iam.DeleteUserOutput{}, nil
}

func (m *mockIAMClient) CreatePolicy(ctx context.Context, input *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	m.record("CreatePolicy")
	m.createdPolicy = input
	return &iam.CreatePolicyOutput{
		Policy: &types.Policy{
			Arn: aws.String("arn:aws:iam::123456789012:policy/test"),
		},
	}, nil
}

func (m *mockIAMClient) GetPolicy(ctx context.Context, input *iam.GetPolicyInput, optFns ...func(*iam.Options)) (*iam.GetPolicyOutput, error) {
	m.record("GetPolicy")
	return &iam.GetPolicyOutput{Policy: &types.Policy{Arn: input.PolicyArn}}, nil
}

func (m *mockIAMClient) AttachRolePolicy(ctx context.Context, input *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	m.record("AttachRolePolicy")
	return &iam.AttachRolePolicyOutput{}, nil
}

func (m *mockIAMClient) DetachRolePolicy(ctx context.Context, input *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	m.record("DetachRolePolicy")
	m.detached = append(m.detached, aws.ToString(input.PolicyArn))
	return &iam.DetachRolePolicyOutput{}, nil
}

func (m *mockIAMClient) ListAttachedRolePolicies(ctx context.Context, input *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	m.record("ListAttachedRolePolicies")
	return &iam.ListAttachedRolePoliciesOutput{AttachedPolicies: m.attachedPolicies}, nil
}

func (m *mockIAMClient) GetRole(ctx context.Context, input *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	m.record("GetRole")
	if m.getRoleErr != nil {
		return nil, m.getRoleErr
	}
	if !m.roleExists {
		return nil, &types.NoSuchEntityException{Message: aws.String("role not found")}
	}
	return &iam.GetRoleOutput{
		Role: &types.Role{
			Arn: aws.String("arn:aws:iam::123456789012:role/test"),
		},
	}, nil
}

func (m *mockIAMClient) CreateRole(ctx context.Context, input *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	m.record("CreateRole")
	m.createdRole = input
	return &iam.CreateRoleOutput{
		Role: &types.Role{
			Arn: aws.String("arn:aws:iam::123456789012:role/created"),
		},
	}, nil
}

func (m *mockIAMClient) DeleteRole(ctx context.Context, input *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	m.record("DeleteRole")
	return &iam.DeleteRoleOutput{}, nil
}

func (m *mockIAMClient) CreateAccessKey(ctx context.Context, input *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	m.record("CreateAccessKey")
	return &iam.CreateAccessKeyOutput{AccessKey: &types.AccessKey{
		AccessKeyId: aws.String("AKIAEXAMPLE"),
		UserName:    input.UserName,
		Status:      types.StatusTypeActive,
	}}, nil
}

func (m *mockIAMClient) ListAccessKeys(ctx context.Context, input *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	m.record("ListAccessKeys")
	return &iam.ListAccessKeysOutput{AccessKeyMetadata: []types.AccessKeyMetadata{
		{AccessKeyId: aws.String("AKIA1"), UserName: input.UserName},
		{AccessKeyId: aws.String("AKIA2"), UserName: input.UserName},
	}}, nil
}

func (m *mockIAMClient) GetAccessKeyLastUsed(ctx context.Context, input *iam.GetAccessKeyLastUsedInput, optFns ...func(*iam.Options)) (*iam.GetAccessKeyLastUsedOutput, error) {
	m.record("GetAccessKeyLastUsed")
	return &iam.GetAccessKeyLastUsedOutput{AccessKeyLastUsed: &types.AccessKeyLastUsed{
		ServiceName: aws.String("s3"),
		Region:      aws.String("us-east-1"),
	}}, nil
}

func (m *mockIAMClient) UpdateAccessKey(ctx context.Context, input *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error) {
	m.record("UpdateAccessKey")
	m.updatedKey = input
	return &iam.UpdateAccessKeyOutput{}, nil
}

func (m *mockIAMClient) DeleteAccessKey(ctx context.Context, input *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	m.record("DeleteAccessKey")
	return &iam.DeleteAccessKeyOutput{}, nil
}

func (m *mockIAMClient) ListServerCertificates(ctx context.Context, input *iam.ListServerCertificatesInput, optFns ...func(*iam.Options)) (*iam.ListServerCertificatesOutput, error) {
	m.record("ListServerCertificates")
	return &iam.ListServerCertificatesOutput{ServerCertificateMetadataList: []types.ServerCertificateMetadata{
		{ServerCertificateName: aws.String("web")},
	}}, nil
}

func (m *mockIAMClient) GetServerCertificate(ctx context.Context, input *iam.GetServerCertificateInput, optFns ...func(*iam.Options)) (*iam.GetServerCertificateOutput, error) {
	m.record("GetServerCertificate")
	return &iam.GetServerCertificateOutput{ServerCertificate: &types.ServerCertificate{
		CertificateBody: aws.String("-----BEGIN CERTIFICATE-----"),
		ServerCertificateMetadata: &types.ServerCertificateMetadata{
			ServerCertificateName: input.ServerCertificateName,
		},
	}}, nil
}

func (m *mockIAMClient) UpdateServerCertificate(ctx context.Context, input *iam.UpdateServerCertificateInput, optFns ...func(*iam.Options)) (*iam.UpdateServerCertificateOutput, error) {
	m.record("UpdateServerCertificate")
	return &iam.UpdateServerCertificateOutput{}, nil
}

func (m *mockIAMClient) DeleteServerCertificate(ctx context.Context, input *iam.DeleteServerCertificateInput, optFns ...func(*iam.Options)) (*iam.DeleteServerCertificateOutput, error) {
	m.record("DeleteServerCertificate")
	return &iam.DeleteServerCertificateOutput{}, nil
}

func (m *mockIAMClient) CreateAccountAlias(ctx context.Context, input *iam.CreateAccountAliasInput, optFns ...func(*iam.Options)) (*iam.CreateAccountAliasOutput, error) {
	m.record("CreateAccountAlias")
	return &iam.CreateAccountAliasOutput{}, nil
}

func (m *mockIAMClient) ListAccountAliases(ctx context.Context, input *iam.ListAccountAliasesInput, optFns ...func(*iam.Options)) (*iam.ListAccountAliasesOutput, error) {
	m.record("ListAccountAliases")
	return &iam.ListAccountAliasesOutput{AccountAliases: []string{"my-company"}}, nil
}

func (m *mockIAMClient) DeleteAccountAlias(ctx context.Context, input *iam.DeleteAccountAliasInput, optFns ...func(*iam.Options)) (*iam.DeleteAccountAliasOutput, error) {
	m.record("DeleteAccountAlias")
	return &iam.DeleteAccountAliasOutput{}, nil
}

func TestServiceWrapper_DeleteRole(t *testing.T) {
	mock := &mockIAMClient{attachedPolicies: []types.AttachedPolicy{
		{PolicyArn: aws.String("arn:aws:iam::aws:policy/AWSLambdaExecute")},
		{PolicyArn: aws.String("arn:aws:iam::123456789012:policy/test")},
	}}
	sw := ServiceWrapper{Client: mock}

	err := sw.DeleteRole(context.TODO(), "test")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"arn:aws:iam::aws:policy/AWSLambdaExecute",
		"arn:aws:iam::123456789012:policy/test",
	}, mock.detached)
	assert.Equal(t, "DeleteRole", mock.calls[len(mock.calls)-1])
}

func TestServiceWrapper_CheckRoleExists(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		sw := ServiceWrapper{Client: &mockIAMClient{roleExists: true}}
		arn := sw.CheckRoleExists(context.TODO(), "test")
		require.NotNil(t, arn)
		assert.EqualValues(t, "arn:aws:iam::123456789012:role/test", *arn)
	})

	t.Run("missing", func(t *testing.T) {
		sw := ServiceWrapper{Client: &mockIAMClient{}}
		assert.Nil(t, sw.CheckRoleExists(context.TODO(), "test"))
	})

	t.Run("access denied", func(t *testing.T) {
		sw := ServiceWrapper{Client: &mockIAMClient{getRoleErr: errors.New("AccessDenied")}}
		assert.Nil(t, sw.CheckRoleExists(context.TODO(), "test"))
	})
}

func TestCreatePolicy(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}
	policyDocument := `{
		"Version": "2012-10-17",
		"Statement": [
		  {
			"Effect": "Allow",
			"Action": "logs:CreateLogGroup",
			"Resource": "arn:aws:logs:us-west-2:123456789012:*"
		  }
		]
	  }`
	policy, err := wrapper.CreatePolicy(context.TODO(), policyDocument, "test_policy")
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, "test_policy", aws.ToString(mock.createdPolicy.PolicyName))
	assert.True(t, strings.HasPrefix(aws.ToString(mock.createdPolicy.PolicyDocument), "{"))
}

func TestCreatePolicy_SingleStatement(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}
	policyDocument := `{"Version":"2012-10-17","Statement":{"Effect":"Allow","Action":"s3:GetObject","Resource":"*"}}`

	policy, err := wrapper.CreatePolicy(context.TODO(), policyDocument, "single")
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, policyDocument, aws.ToString(mock.createdPolicy.PolicyDocument))
}

func TestCreatePolicy_InvalidDocument(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}

	for _, doc := range []string{
		"not json",
		`["Statement"]`,
		`{"Version":"2012-10-17","Statement":[]}`,
		`{"Version":"2012-10-17","Statement":{}}`,
		`{"Version":"2012-10-17","Statement":"Allow"}`,
		`{"Version":"2012-10-17"}`,
	} {
		_, err := wrapper.CreatePolicy(context.TODO(), doc, "bad")
		var inputErr *common.InputError
		assert.ErrorAs(t, err, &inputErr)
	}
	assert.Empty(t, mock.calls)
}

func TestDefaultManagedPolicy(t *testing.T) {
	body, err := json.Marshal(DefaultManagedPolicy("RESOURCE_ARN"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Version": "2012-10-17",
		"Statement": [
			{"Effect": "Allow", "Action": "logs:CreateLogGroup", "Resource": "RESOURCE_ARN"},
			{"Effect": "Allow", "Action": ["dynamodb:DeleteItem", "dynamodb:GetItem", "dynamodb:PutItem", "dynamodb:Scan", "dynamodb:UpdateItem"], "Resource": "RESOURCE_ARN"}
		]
	}`, string(body))
	assert.NoError(t, validatePolicy(string(body)))
}

func TestAttachRolePolicy(t *testing.T) {
	wrapper := ServiceWrapper{
		Client: &mockIAMClient{},
	}
	err := wrapper.AttachRolePolicy(context.TODO(), "test_policy_arn", "test_role")
	if err != nil {
		t.Fatalf("Failed to attach role policy: %v", err)
	}
}

func TestNewRole(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}

	role, err := wrapper.NewRole(context.TODO(), "Test", ServiceTrustPolicy("lambda.amazonaws.com"))
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/created", aws.ToString(role.Arn))
	assert.JSONEq(t, `{
		"Version": "2012-10-17",
		"Statement": [{"Effect": "Allow", "Principal": {"Service": "lambda.amazonaws.com"}, "Action": ["sts:AssumeRole"]}]
	}`, aws.ToString(mock.createdRole.AssumeRolePolicyDocument))
}

func TestEnsureRole(t *testing.T) {
	policy := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"s3:GetObject","Resource":"*"}]}`

	t.Run("creates missing role and attaches policy", func(t *testing.T) {
		mock := &mockIAMClient{}
		arn, err := ServiceWrapper{Client: mock}.EnsureRole(context.TODO(), "reader", "ec2.amazonaws.com", policy)
		require.NoError(t, err)
		assert.Equal(t, "arn:aws:iam::123456789012:role/created", aws.ToString(arn))
		assert.Equal(t, []string{"GetRole", "CreateRole", "ListAttachedRolePolicies", "CreatePolicy", "AttachRolePolicy"}, mock.calls)
		assert.Equal(t, "reader_policy", aws.ToString(mock.createdPolicy.PolicyName))
	})

	t.Run("existing role with policies is left alone", func(t *testing.T) {
		mock := &mockIAMClient{
			roleExists:       true,
			attachedPolicies: []types.AttachedPolicy{{PolicyArn: aws.String("arn:aws:iam::aws:policy/ReadOnlyAccess")}},
		}
		arn, err := ServiceWrapper{Client: mock}.EnsureRole(context.TODO(), "reader", "ec2.amazonaws.com", policy)
		require.NoError(t, err)
		assert.Equal(t, "arn:aws:iam::123456789012:role/test", aws.ToString(arn))
		assert.Equal(t, []string{"GetRole", "ListAttachedRolePolicies"}, mock.calls)
	})

	t.Run("no policy document", func(t *testing.T) {
		mock := &mockIAMClient{roleExists: true}
		_, err := ServiceWrapper{Client: mock}.EnsureRole(context.TODO(), "reader", "ec2.amazonaws.com", " ")
		require.NoError(t, err)
		assert.Equal(t, []string{"GetRole"}, mock.calls)
	})
}

func TestListUsers_FollowsMarker(t *testing.T) {
	mock := &mockIAMClient{}
	users, err := ServiceWrapper{Client: mock}.ListUsers(context.TODO())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", aws.ToString(users[0].UserName))
	assert.Equal(t, "bob", aws.ToString(users[1].UserName))
	assert.Equal(t, "page-2", aws.ToString(mock.userPageMarker[1]))
}

func TestUserLifecycle(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}
	ctx := context.TODO()

	user, err := wrapper.CreateUser(ctx, "janedoe")
	require.NoError(t, err)
	assert.Equal(t, "janedoe", aws.ToString(user.UserName))
	require.NoError(t, wrapper.UpdateUser(ctx, "janedoe", "jdoe"))
	require.NoError(t, wrapper.DeleteUser(ctx, "jdoe"))
	assert.Equal(t, []string{"CreateUser", "UpdateUser", "DeleteUser"}, mock.calls)
}

func TestAccessKeys(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}
	ctx := context.TODO()

	key, err := wrapper.CreateAccessKey(ctx, "janedoe")
	require.NoError(t, err)
	assert.Equal(t, types.StatusTypeActive, key.Status)

	keys, err := wrapper.ListAccessKeys(ctx, "janedoe")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	lastUsed, err := wrapper.GetAccessKeyLastUsed(ctx, "AKIA1")
	require.NoError(t, err)
	assert.Equal(t, "s3", aws.ToString(lastUsed.ServiceName))

	t.Run("update status", func(t *testing.T) {
		require.NoError(t, wrapper.UpdateAccessKey(ctx, "AKIA1", "Inactive", "janedoe"))
		assert.Equal(t, types.StatusTypeInactive, mock.updatedKey.Status)
	})

	t.Run("reject unknown status", func(t *testing.T) {
		mock.updatedKey = nil
		err := wrapper.UpdateAccessKey(ctx, "AKIA1", "Paused", "janedoe")
		var inputErr *common.InputError
		assert.ErrorAs(t, err, &inputErr)
		assert.Nil(t, mock.updatedKey)
	})

	require.NoError(t, wrapper.DeleteAccessKey(ctx, "AKIA1", "janedoe"))
}

func TestServerCertificates(t *testing.T) {
	wrapper := ServiceWrapper{Client: &mockIAMClient{}}
	ctx := context.TODO()

	certs, err := wrapper.ListServerCertificates(ctx)
	require.NoError(t, err)
	require.Len(t, certs, 1)

	cert, err := wrapper.GetServerCertificate(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "web", aws.ToString(cert.ServerCertificateMetadata.ServerCertificateName))

	assert.NoError(t, wrapper.UpdateServerCertificate(ctx, "web", "web-2"))
	assert.NoError(t, wrapper.DeleteServerCertificate(ctx, "web-2"))
}

func TestAccountAliases(t *testing.T) {
	mock := &mockIAMClient{}
	wrapper := ServiceWrapper{Client: mock}
	ctx := context.TODO()

	require.NoError(t, wrapper.CreateAccountAlias(ctx, "my-company"))
	aliases, err := wrapper.ListAccountAliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-company"}, aliases)
	require.NoError(t, wrapper.DeleteAccountAlias(ctx, "my-company"))
}

func TestGetPolicy(t *testing.T) {
	policy, err := ServiceWrapper{Client: &mockIAMClient{}}.GetPolicy(context.TODO(), "arn:aws:iam::aws:policy/AWSLambdaExecute")
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::aws:policy/AWSLambdaExecute", aws.ToString(policy.Arn))
}
