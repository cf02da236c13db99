package s3

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/a-pavithraa/aws-helpers/common"
)

// MiB is the unit part sizes are given in on the command line.
const MiB int64 = 1024 * 1024

func (wrapper ServiceWrapper) uploader() *manager.Uploader {
	return manager.NewUploader(wrapper.Client, func(u *manager.Uploader) {
		if wrapper.Transfer.PartSize > 0 {
			u.PartSize = wrapper.Transfer.PartSize
		}
		if wrapper.Transfer.Concurrency > 0 {
			u.Concurrency = wrapper.Transfer.Concurrency
		}
	})
}

func (wrapper ServiceWrapper) downloader() *manager.Downloader {
	return manager.NewDownloader(wrapper.Client, func(d *manager.Downloader) {
		if wrapper.Transfer.PartSize > 0 {
			d.PartSize = wrapper.Transfer.PartSize
		}
		if wrapper.Transfer.Concurrency > 0 {
			d.Concurrency = wrapper.Transfer.Concurrency
		}
	})
}

// UploadFile uploads a local file. The object key defaults to fileName.
func (wrapper ServiceWrapper) UploadFile(ctx context.Context, fileName string, bucket string, objectName string) error {
	if common.TrimAndCheckEmptyString(&objectName) {
		objectName = fileName
	}
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := wrapper.UploadObject(ctx, file, bucket, objectName); err != nil {
		log.WithError(err).WithFields(log.Fields{"file": fileName, "bucket": bucket}).Error("upload failed")
		return err
	}
	return nil
}

// UploadObject streams body to bucket/key.
func (wrapper ServiceWrapper) UploadObject(ctx context.Context, body io.Reader, bucket string, key string) error {
	_, err := wrapper.uploader().Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %q: %w", key, err)
	}
	return nil
}

// DownloadFile writes bucket/key to fileName, creating or truncating it.
func (wrapper ServiceWrapper) DownloadFile(ctx context.Context, bucket string, key string, fileName string) (int64, error) {
	file, err := os.Create(fileName)
	if err != nil {
		return 0, err
	}
	n, err := wrapper.DownloadObject(ctx, bucket, key, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// DownloadObject writes bucket/key into w. Parts may arrive out of order, so
// w must support WriteAt.
func (wrapper ServiceWrapper) DownloadObject(ctx context.Context, bucket string, key string, w io.WriterAt) (int64, error) {
	n, err := wrapper.downloader().Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, fmt.Errorf("s3 download %q: %w", key, err)
	}
	return n, nil
}
