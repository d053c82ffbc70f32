// server/internal/s3/uploader.go
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"container-inspection-api-server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	Client           PutObjectAPI
	Bucket           string
	Region           string
	CloudFrontDomain string
}

func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	// Without static keys fall back to the default chain (instance role, env, profile).
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Uploader{
		Client:           s3.NewFromConfig(sdkConfig),
		Bucket:           cfg.Bucket,
		Region:           cfg.Region,
		CloudFrontDomain: cfg.CloudFrontDomain,
	}, nil
}

// URL returns the public URL of objectKey.
func (u *Uploader) URL(objectKey string) string {
	if u.CloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", u.CloudFrontDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, objectKey)
}

// UploadFile uploads a file to S3 and returns its URL.
func (u *Uploader) UploadFile(ctx context.Context, file io.Reader, objectKey, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(objectKey),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", objectKey, err)
	}
	return u.URL(objectKey), nil
}

// Object is one file of a batch upload.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
}

// UploadBatch uploads objects with at most concurrency uploads in flight and
// returns their URLs in input order. The first failure cancels the rest.
func (u *Uploader) UploadBatch(ctx context.Context, objects []Object, concurrency int) ([]string, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	urls := make([]string, len(objects))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, obj := range objects {
		eg.Go(func() error {
			url, err := u.UploadFile(gctx, bytes.NewReader(obj.Data), obj.Key, obj.ContentType)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
