package persistence

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Uploader is the part of *manager.Uploader the mirror uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config locates the mirror bucket. Endpoint switches to path-style
// addressing for S3-compatible stores. Static keys are optional; without
// them the default AWS credential chain is used.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Mirror uploads artifacts to an S3 bucket.
type S3Mirror struct {
	uploader Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Mirror builds an S3 client from cfg and wraps it in an uploader.
func NewS3Mirror(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.Concurrency = 2
	})

	return NewS3MirrorWithUploader(uploader, cfg.Bucket, cfg.Prefix, log), nil
}

// NewS3MirrorWithUploader creates a mirror over an existing uploader.
func NewS3MirrorWithUploader(u Uploader, bucket, prefix string, log zerolog.Logger) *S3Mirror {
	return &S3Mirror{
		uploader: u,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "s3_mirror").Logger(),
	}
}

// Key returns the object key for an artifact name.
func (m *S3Mirror) Key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Mirror uploads data under Key(name).
func (m *S3Mirror) Mirror(ctx context.Context, name string, data []byte) error {
	key := m.Key(name)
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s: %w", key, m.bucket, err)
	}

	m.log.Info().
		Str("bucket", m.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Artifact mirrored")
	return nil
}

func contentType(name string) string {
	switch ext := path.Ext(name); ext {
	case ".qasm":
		return "text/plain; charset=utf-8"
	case ".gz":
		return "application/gzip"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
