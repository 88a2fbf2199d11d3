package storage

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
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects request.
const maxDeleteBatch = 1000

// ErrPartialDelete is returned when S3 reports per-key failures in a batch delete.
var ErrPartialDelete = errors.New("storage: some objects were not deleted")

// Compile-time check that S3Store implements ObjectStore.
var _ ObjectStore = (*S3Store)(nil)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Store issues pre-signed PUT URLs and deletes objects in a single bucket.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewS3Store creates a new S3Store from cfg.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: S3 bucket is required")
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

// PresignPut returns a URL that accepts one PUT of key with the given content type.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (Grant, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	issuedAt := time.Now()
	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return Grant{}, fmt.Errorf("presign put %s: %w", key, err)
	}

	return Grant{
		URL:         req.URL,
		Key:         key,
		ContentType: contentType,
		ExpiresAt:   issuedAt.Add(ttl),
	}, nil
}

// DeleteObjects removes keys from the bucket in batches of up to 1000.
// Every batch is attempted; per-key failures are reported as ErrPartialDelete.
func (s *S3Store) DeleteObjects(ctx context.Context, keys []string) error {
	keys = compactKeys(keys)
	if len(keys) == 0 {
		return ErrNoKeys
	}

	var failed []string
	var firstErr error
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete objects: %w", err)
			}
			continue
		}
		for _, e := range out.Errors {
			failed = append(failed, aws.ToString(e.Key))
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrPartialDelete, strings.Join(failed, ", "))
	}
	return nil
}

// Bucket returns the configured bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// compactKeys drops empty and duplicate keys, keeping order.
func compactKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
