package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mdsync-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Archiver keeps a copy of expired messages before they are deleted
type Archiver interface {
	Archive(ctx context.Context, pairID string, messages []*models.ChatMessage) error
}

// S3Options configures the S3 archive
type S3Options struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// objectPutter is the part of the S3 client the archiver uses
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes expired messages as one JSON object per sweep and pair
type S3Archiver struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewS3Archiver creates an archiver for opts.Bucket. Static credentials are
// used when given, the default AWS chain otherwise. A custom endpoint
// switches to path-style addressing for S3-compatible storage.
func NewS3Archiver(ctx context.Context, opts S3Options) (*S3Archiver, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{client: client, bucket: opts.Bucket, now: time.Now}, nil
}

// archiveDocument is the JSON layout of one archive object
type archiveDocument struct {
	PairID     string                `json:"pair_id"`
	ArchivedAt time.Time             `json:"archived_at"`
	Messages   []*models.ChatMessage `json:"messages"`
}

// Archive uploads messages to <pairID>/<unix seconds>.json
func (a *S3Archiver) Archive(ctx context.Context, pairID string, messages []*models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	now := a.now()

	body, err := json.Marshal(archiveDocument{
		PairID:     pairID,
		ArchivedAt: now,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal archive: %w", err)
	}

	key := archiveKey(pairID, now)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	log.Debug().
		Str("pair_id", pairID).
		Str("key", key).
		Int("messages", len(messages)).
		Msg("Expired messages archived")

	return nil
}

func archiveKey(pairID string, at time.Time) string {
	return fmt.Sprintf("%s/%d.json", pairID, at.Unix())
}
