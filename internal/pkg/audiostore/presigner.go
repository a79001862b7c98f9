package audiostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// DefaultURLTTL is how long a presigned audio URL stays fetchable. It has to
// outlive the orchestrator's worst-case polling window.
const DefaultURLTTL = 15 * time.Minute

// Presigner turns private audio object keys into short-lived GET URLs the
// transcription provider can fetch.
type Presigner struct {
	presignClient *s3.PresignClient
	config        *Config
}

// NewPresigner creates a presigner for the configured audio bucket
func NewPresigner(cfg *Config) (*Presigner, error) {
	if !cfg.IsEnabled() {
		return nil, errors.New("audio store is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[AudioStore] Presigner initialized for bucket: %s", cfg.BucketName)
	return &Presigner{
		presignClient: s3.NewPresignClient(s3Client),
		config:        cfg,
	}, nil
}

// PresignGet returns a presigned GET URL for an audio object key
func (p *Presigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", errors.New("audio object key is required")
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	req, err := p.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.config.BucketName),
		Key:    aws.String(trimmed),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign audio url for %s: %w", trimmed, err)
	}

	return req.URL, nil
}
