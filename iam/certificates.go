package iam

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

func (wrapper ServiceWrapper) ListServerCertificates(ctx context.Context) ([]types.ServerCertificateMetadata, error) {
	var certificates []types.ServerCertificateMetadata
	paginator := iam.NewListServerCertificatesPaginator(wrapper.Client, &iam.ListServerCertificatesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("iam ListServerCertificates: %w", err)
		}
		certificates = append(certificates, page.ServerCertificateMetadataList...)
	}
	return certificates, nil
}

func (wrapper ServiceWrapper) GetServerCertificate(ctx context.Context, certificateName string) (*types.ServerCertificate, error) {
	result, err := wrapper.Client.GetServerCertificate(ctx, &iam.GetServerCertificateInput{
		ServerCertificateName: aws.String(certificateName),
	})
	if err != nil {
		return nil, err
	}
	return result.ServerCertificate, nil
}

// UpdateServerCertificate renames a server certificate.
func (wrapper ServiceWrapper) UpdateServerCertificate(ctx context.Context, certificateName string, newCertificateName string) error {
	_, err := wrapper.Client.UpdateServerCertificate(ctx, &iam.UpdateServerCertificateInput{
		ServerCertificateName:    aws.String(certificateName),
		NewServerCertificateName: aws.String(newCertificateName),
	})
	return err
}

func (wrapper ServiceWrapper) DeleteServerCertificate(ctx context.Context, certificateName string) error {
	_, err := wrapper.Client.DeleteServerCertificate(ctx, &iam.DeleteServerCertificateInput{
		ServerCertificateName: aws.String(certificateName),
	})
	return err
}
