package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"warehouse/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ErrIncompleteS3Config is returned when the S3 mirror configuration is
// incomplete
var ErrIncompleteS3Config = errors.New("incomplete S3 configuration")

// Mirror replicates published archives and index files into an S3 bucket.
// It is an after-the-fact replica of what this server already serves, not a
// source of truth.
type Mirror struct {
	S3Client *s3.Client
	Timeout  time.Duration
	Bucket   string
}

// NewMirror creates an S3-backed mirror from the storage configuration.
func NewMirror(cfg config.S3Config) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w", ErrIncompleteS3Config)
	}

	s3Client := s3.New(s3.Options{
		UsePathStyle: true,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Region:       cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.AccessKey, ""),
		),
	})

	timeout := time.Minute
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid S3 timeout value: %w", err)
		}
		timeout = parsed
	}

	return &Mirror{
		S3Client: s3Client,
		Timeout:  timeout,
		Bucket:   cfg.Bucket,
	}, nil
}

// Upload copies the local file to the bucket under key.
func (m *Mirror) Upload(ctx context.Context, path, key string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for mirroring: %w", err)
	}
	defer file.Close()

	uploader := manager.NewUploader(m.S3Client)

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	result, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		var mu manager.MultiUploadFailure
		if errors.As(err, &mu) {
			log.Error().
				Msg(fmt.Sprintf("multi-upload failure (upload_id: %s): %v", mu.UploadID(), mu))

			return fmt.Errorf(
				"multi-upload failure (upload_id: %s): %w",
				mu.UploadID(),
				mu,
			)
		}
		log.Error().Err(err).Msg("upload failure")

		return fmt.Errorf("upload failure: %w", err)
	}

	log.Debug().
		Str("location", result.Location).
		Msg("successfully mirrored file to s3 bucket")

	return nil
}

// Delete removes the object under key from the bucket.
func (m *Mirror) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	_, err := m.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete failure: %w", err)
	}

	return nil
}
