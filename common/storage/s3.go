package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/clipdeck/uploader/common/config"
	"github.com/clipdeck/uploader/common/logger"
)

// S3Storage implements ObjectStorage on top of an S3 bucket or any
// S3-compatible store reachable through a custom endpoint.
type S3Storage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	region     string
	endpoint   string
	presignTTL time.Duration
	log        *logger.Logger
}

// NewS3Storage builds the S3 client from service configuration.
func NewS3Storage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*S3Storage, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.Region),
	}
	if cfg.Storage.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.UsePathStyle
	})

	log.Info("object storage configured",
		"bucket", cfg.Storage.Bucket,
		"region", cfg.Storage.Region,
		"presign_ttl", cfg.Storage.PresignTTL,
	)

	return &S3Storage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Storage.Bucket,
		region:     cfg.Storage.Region,
		endpoint:   cfg.Storage.Endpoint,
		presignTTL: cfg.Storage.PresignTTL,
		log:        log,
	}, nil
}

// PresignUpload signs a single-use write URL for key with the declared
// content type.
func (s *S3Storage) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	presigned, err := s.presigner.PresignPutObject(
		ctx,
		&s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			ContentType: aws.String(contentType),
		},
		s3.WithPresignExpires(s.presignTTL),
	)
	if err != nil {
		s.log.Error("failed to presign upload", "key", key, "error", err)
		return "", fmt.Errorf("presign upload for %s: %w", key, err)
	}

	return presigned.URL, nil
}

// Exists checks for the object with a HEAD request.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}

	s.log.Error("failed to check object existence", "key", key, "error", err)
	return false, fmt.Errorf("head object %s: %w", key, err)
}

// Delete removes the object at key.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to delete object", "key", key, "error", err)
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// PublicURL resolves the permanent read address for key.
func (s *S3Storage) PublicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// PresignTTL returns the validity window of issued write URLs.
func (s *S3Storage) PresignTTL() time.Duration {
	return s.presignTTL
}
