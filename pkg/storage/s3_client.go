// Package storage uploads report files to S3 or an S3-compatible store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"rentflow/property-portal/property-portal-backend/internal/config"
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("report storage is not configured")

// Presigner signs download links.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader stores objects under a fixed bucket and key prefix.
type S3Uploader struct {
	uploader  *manager.Uploader
	presigner Presigner
	bucket    string
	prefix    string
}

// NewS3Uploader wraps an existing client. presigner may be nil.
func NewS3Uploader(client manager.UploadAPIClient, presigner Presigner, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		uploader:  manager.NewUploader(client),
		presigner: presigner,
		bucket:    bucket,
		prefix:    prefix,
	}
}

// NewS3UploaderFromConfig builds a client from cfg. Static keys and a
// custom endpoint switch to path-style addressing for MinIO.
func NewS3UploaderFromConfig(ctx context.Context, cfg config.StorageConfig) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Uploader(client, s3.NewPresignClient(client), cfg.Bucket, cfg.Prefix), nil
}

// Key is the object key for name under the configured prefix.
func (u *S3Uploader) Key(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// Upload stores body at Key(name) and returns the object location.
func (u *S3Uploader) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(u.Key(name)),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return out.Location, nil
}

// PresignedURL returns a time-limited download link for name.
func (u *S3Uploader) PresignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	if u.presigner == nil {
		return "", errors.New("presigning is not available")
	}
	req, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.Key(name)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", name, err)
	}
	return req.URL, nil
}
