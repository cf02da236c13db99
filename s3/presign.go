package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/a-pavithraa/aws-helpers/common"
)

const DefaultExpiration = time.Hour

func expiresOrDefault(expiration time.Duration) time.Duration {
	if expiration <= 0 {
		return DefaultExpiration
	}
	return expiration
}

// PresignGetObject returns a URL that downloads bucket/key until it expires.
func (wrapper ServiceWrapper) PresignGetObject(ctx context.Context, bucket string, key string, expiration time.Duration) (string, error) {
	return wrapper.PresignRequest(ctx, "get_object", bucket, key, expiration)
}

// PresignRequest presigns one of the object level client methods:
// get_object, put_object, head_object or delete_object.
func (wrapper ServiceWrapper) PresignRequest(ctx context.Context, method string, bucket string, key string, expiration time.Duration) (string, error) {
	expires := s3.WithPresignExpires(expiresOrDefault(expiration))
	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch method {
	case "get_object":
		req, err = wrapper.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, expires)
	case "put_object":
		req, err = wrapper.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, expires)
	case "head_object":
		req, err = wrapper.Presigner.PresignHeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, expires)
	case "delete_object":
		req, err = wrapper.Presigner.PresignDeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, expires)
	default:
		return "", &common.InputError{Message: fmt.Sprintf("client method %q cannot be presigned", method)}
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"method": method, "bucket": bucket, "key": key}).Error("presign failed")
		return "", err
	}
	return req.URL, nil
}

// PresignPost builds a browser-style POST upload for bucket/key. Every entry
// of fields is sent as a form field and pinned by an exact-match condition;
// conditions are added to the POST policy as given.
func (wrapper ServiceWrapper) PresignPost(ctx context.Context, bucket string, key string, fields map[string]string, conditions []any, expiration time.Duration) (*s3.PresignedPostRequest, error) {
	policyConditions := slices.Clone(conditions)
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		policyConditions = append(policyConditions, map[string]string{name: fields[name]})
	}

	post, err := wrapper.Presigner.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = expiresOrDefault(expiration)
		o.Conditions = policyConditions
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"bucket": bucket, "key": key}).Error("presign post failed")
		return nil, err
	}
	if post.Values == nil {
		post.Values = map[string]string{}
	}
	maps.Copy(post.Values, fields)
	return post, nil
}

// DownloadFromPresignedURL copies the body behind a presigned GET URL to w.
func (wrapper ServiceWrapper) DownloadFromPresignedURL(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := wrapper.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, httpError(resp)
	}
	return io.Copy(w, resp.Body)
}

// UploadWithPresignedPost submits fileName as a multipart form to a presigned
// POST. S3 answers 204 No Content on success; the status code is returned.
func (wrapper ServiceWrapper) UploadWithPresignedPost(ctx context.Context, post *s3.PresignedPostRequest, fileName string) (int, error) {
	if post == nil {
		return 0, &common.InputError{Message: "presigned post is missing"}
	}
	file, err := os.Open(fileName)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	// Only the multipart envelope is buffered; the file streams between head
	// and tail. S3 rejects POST bodies without a Content-Length.
	var envelope bytes.Buffer
	form := multipart.NewWriter(&envelope)
	// S3 ignores every field after the file, so the policy fields go first.
	for _, name := range slices.Sorted(maps.Keys(post.Values)) {
		if err := form.WriteField(name, post.Values[name]); err != nil {
			return 0, err
		}
	}
	if _, err := form.CreateFormFile("file", filepath.Base(fileName)); err != nil {
		return 0, err
	}
	head := bytes.Clone(envelope.Bytes())
	envelope.Reset()
	if err := form.Close(); err != nil {
		return 0, err
	}
	tail := envelope.Bytes()

	body := io.MultiReader(bytes.NewReader(head), io.LimitReader(file, info.Size()), bytes.NewReader(tail))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, post.URL, body)
	if err != nil {
		return 0, err
	}
	req.ContentLength = int64(len(head)) + info.Size() + int64(len(tail))
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := wrapper.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	log.WithField("status", resp.StatusCode).Info("presigned post upload")
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, httpError(resp)
	}
	return resp.StatusCode, nil
}

func httpError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("presigned request returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
}
