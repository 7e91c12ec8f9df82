package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pfrederiksen/city-events/internal/config"
)

// Archive stores raw fetched pages for later inspection
type Archive interface {
	Put(ctx context.Context, key string, body []byte) error
}

// FileArchive writes pages under a local directory
type FileArchive struct {
	Dir string
}

// Put writes body to Dir/key
func (a FileArchive) Put(_ context.Context, key string, body []byte) error {
	path := filepath.Join(a.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("writing archived page: %w", err)
	}
	return nil
}

// s3API is the subset of the S3 client used by S3Archive
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive uploads pages to a bucket under a key prefix
type S3Archive struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Archive creates an archive using the default AWS credential chain
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Archive{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads body as an HTML object
func (a *S3Archive) Put(ctx context.Context, key string, body []byte) error {
	key = strings.TrimPrefix(key, "/")
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// OpenArchive returns the archive selected by cfg, or nil when archiving is off
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig, dataDir string) (Archive, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, nil
	case "file":
		dir := cfg.Path
		if dir == "" {
			dir = filepath.Join(dataDir, "pages")
		}
		return FileArchive{Dir: dir}, nil
	case "s3":
		a, err := NewS3Archive(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
