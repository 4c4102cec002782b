package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store uploads an attachment and returns a public reference URL. The
// delivery engine persists a media message only after Upload returns.
type Store interface {
	Upload(ctx context.Context, data []byte, filename, mimetype string) (string, error)
}

type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, data []byte, filename, mimetype string) (string, error) {
	log.Printf("[BLOB] Uploading %s (%s, %d bytes)", filename, mimetype, len(data))

	key := uuid.NewString() + "-" + strings.Join(strings.Fields(filename), "_")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimetype),
	})
	if err != nil {
		log.Printf("[BLOB] Upload failed for %s: %v", filename, err)
		return "", fmt.Errorf("put object: %w", err)
	}

	// Path-style URL avoids TLS issues with dotted bucket names.
	url := fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.region, s.bucket, key)
	log.Printf("[BLOB] Upload complete: %s", url)
	return url, nil
}

// Disabled is used when no bucket is configured; every upload fails and the
// sender gets an upload error event, keeping text messaging functional.
type Disabled struct{}

func (Disabled) Upload(context.Context, []byte, string, string) (string, error) {
	return "", errors.New("blob storage not configured")
}
