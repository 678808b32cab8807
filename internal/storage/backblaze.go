package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Backblaze writes objects through B2's S3-compatible API. The credential
// is "keyID:applicationKey" and the folder is "bucket[/prefix]". Each Put
// sends exactly one request.
type Backblaze struct {
	endpoint string
	region   string
	timeout  time.Duration
}

func NewBackblaze(endpoint, region string, timeout time.Duration) *Backblaze {
	return &Backblaze{endpoint: endpoint, region: region, timeout: timeout}
}

func (b *Backblaze) Put(ctx context.Context, credential, folder, name string, data []byte) (string, error) {
	if b.endpoint == "" {
		return "", fmt.Errorf("backblaze: %w", ErrNotImplemented)
	}

	keyID, appKey, ok := strings.Cut(credential, ":")
	if !ok || keyID == "" || appKey == "" {
		return "", &Error{Provider: "backblaze", Category: CategoryUnauthorized}
	}
	bucket, prefix, _ := strings.Cut(strings.Trim(folder, "/"), "/")
	if bucket == "" {
		return "", &Error{Provider: "backblaze", Category: CategoryNotFound}
	}
	key := objectPath(prefix, name)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	_, err := b.client(keyID, appKey).PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", &Error{Provider: "backblaze", Category: s3Category(err)}
	}
	return "b2://" + bucket + "/" + key, nil
}

func (b *Backblaze) client(keyID, appKey string) *s3.Client {
	return s3.New(s3.Options{
		BaseEndpoint: aws.String(b.endpoint),
		Region:       b.region,
		Credentials:  credentials.NewStaticCredentialsProvider(keyID, appKey, ""),
		UsePathStyle: true,
		Retryer:      aws.NopRetryer{},
	})
}

func s3Category(err error) string {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return statusCategory(respErr.HTTPStatusCode())
	}
	return transportCategory(err)
}
