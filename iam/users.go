package iam

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

func (wrapper ServiceWrapper) CreateUser(ctx context.Context, userName string) (*types.User, error) {
	result, err := wrapper.Client.CreateUser(ctx, &iam.CreateUserInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return nil, err
	}
	return result.User, nil
}

func (wrapper ServiceWrapper) ListUsers(ctx context.Context) ([]types.User, error) {
	var users []types.User
	paginator := iam.NewListUsersPaginator(wrapper.Client, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("iam ListUsers: %w", err)
		}
		users = append(users, page.Users...)
	}
	return users, nil
}

// UpdateUser renames a user.
func (wrapper ServiceWrapper) UpdateUser(ctx context.Context, userName string, newUserName string) error {
	_, err := wrapper.Client.UpdateUser(ctx, &iam.UpdateUserInput{
		UserName:    aws.String(userName),
		NewUserName: aws.String(newUserName),
	})
	if err == nil {
		log.WithFields(log.Fields{"user": userName, "new_name": newUserName}).Info("user renamed")
	}
	return err
}

func (wrapper ServiceWrapper) DeleteUser(ctx context.Context, userName string) error {
	_, err := wrapper.Client.DeleteUser(ctx, &iam.DeleteUserInput{
		UserName: aws.String(userName),
	})
	return err
}
