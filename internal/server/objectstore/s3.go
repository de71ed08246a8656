// Package objectstore uploads avatar images to an S3-compatible bucket
// (MinIO in development).
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxObjectSize caps a single upload.
const MaxObjectSize = 5 << 20

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		_, err := c.PutObject(ctx, in)
		return err
	}
)

// Config describes the bucket and credentials.
type Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	// PublicBaseURL prefixes object keys in returned URLs. When empty,
	// BaseEndpoint/Bucket is used.
	PublicBaseURL string
}

// S3Store puts objects into one bucket and returns their public URLs.
type S3Store struct {
	client *s3.Client
	bucket string
	public string
}

// NewS3Store builds the S3 client with static credentials and path-style
// addressing.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	public, err := publicBase(cfg)
	if err != nil {
		return nil, err
	}

	return &S3Store{client: client, bucket: cfg.Bucket, public: public}, nil
}

func publicBase(cfg Config) (string, error) {
	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.BaseEndpoint == "" {
			return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region), nil
		}
		base = strings.TrimRight(cfg.BaseEndpoint, "/") + "/" + cfg.Bucket
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("s3: public url: %w", err)
	}
	return strings.TrimRight(base, "/"), nil
}

// Put uploads body under key. Bodies over MaxObjectSize are rejected.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	// the SDK signs the payload, so it needs a seekable body of known size
	data, err := io.ReadAll(io.LimitReader(body, MaxObjectSize+1))
	if err != nil {
		return "", fmt.Errorf("s3: read body: %w", err)
	}
	if len(data) > MaxObjectSize {
		return "", fmt.Errorf("s3: object exceeds %d bytes", MaxObjectSize)
	}

	err = putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}

	return s.URL(key), nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	return s.public + "/" + url.PathEscape(key)
}
