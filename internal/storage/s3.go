package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// Uploader persists validated bundles to S3-compatible object storage and
// hands back retrievable references. Bundles are immutable: a key is derived
// from the app and the content hash, so re-uploading identical bytes is a
// no-op overwrite of identical content.
type Uploader struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
}

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewUploader creates an Uploader against the configured endpoint.
func NewUploader(logger zerolog.Logger, cfg Config) *Uploader {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(cfg.Endpoint),
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})
	return &Uploader{
		logger: logger.With().Str("component", "storage-uploader").Logger(),
		client: client,
		bucket: cfg.Bucket,
	}
}

// BundleKey returns the object key for a bundle identified by its content
// hash. The hash arrives as "algorithm:hex"; the colon is not legal in every
// S3 implementation, so keys use the hex digest only.
func BundleKey(appID, hash string) string {
	digest := hash
	if i := strings.IndexByte(hash, ':'); i >= 0 {
		digest = hash[i+1:]
	}
	return fmt.Sprintf("apps/%s/bundles/%s.bundle", appID, digest)
}

// Put stores bundle bytes under the given key and returns the storage
// reference ("s3://bucket/key").
func (u *Uploader) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("put bundle %s: %w", key, err)
	}

	u.logger.Info().Str("key", key).Int("size", len(data)).Msg("bundle stored")
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

// Get fetches bundle bytes by key.
func (u *Uploader) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get bundle %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether a bundle object is present.
func (u *Uploader) Exists(ctx context.Context, key string) (bool, error) {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head bundle %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a bundle object. Deleting a missing object is not an error.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete bundle %s: %w", key, err)
	}
	return nil
}
