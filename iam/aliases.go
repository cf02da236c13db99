package iam

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

func (wrapper ServiceWrapper) CreateAccountAlias(ctx context.Context, alias string) error {
	_, err := wrapper.Client.CreateAccountAlias(ctx, &iam.CreateAccountAliasInput{
		AccountAlias: aws.String(alias),
	})
	return err
}

func (wrapper ServiceWrapper) ListAccountAliases(ctx context.Context) ([]string, error) {
	var aliases []string
	paginator := iam.NewListAccountAliasesPaginator(wrapper.Client, &iam.ListAccountAliasesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("iam ListAccountAliases: %w", err)
		}
		aliases = append(aliases, page.AccountAliases...)
	}
	return aliases, nil
}

func (wrapper ServiceWrapper) DeleteAccountAlias(ctx context.Context, alias string) error {
	_, err := wrapper.Client.DeleteAccountAlias(ctx, &iam.DeleteAccountAliasInput{
		AccountAlias: aws.String(alias),
	})
	return err
}
