// Package s3 mirrors published dataset files into an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/couchcryptid/grid-reliability-etl/internal/config"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Sink uploads documents as JSON objects under an optional key prefix.
// It implements output.Sink.
type Sink struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewSink connects to the configured endpoint. No request is made until the
// first Publish.
func NewSink(cfg *config.Config, logger *slog.Logger) (*Sink, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Sink{client: client, bucket: cfg.S3Bucket, prefix: cfg.S3Prefix, logger: logger}, nil
}

// Key returns the object key a document name is stored under.
func (s *Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Publish uploads doc, replacing any existing object with the same key.
func (s *Sink) Publish(ctx context.Context, doc output.Document) error {
	key := s.Key(doc.Name)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc.Body), int64(len(doc.Body)), minio.PutObjectOptions{
		ContentType:  "application/json",
		CacheControl: "no-cache",
	})
	if err != nil {
		return fmt.Errorf("upload %s to bucket %s: %w", key, s.bucket, err)
	}
	s.logger.Debug("document mirrored to s3", "bucket", s.bucket, "key", key, "etag", info.ETag)
	return nil
}
