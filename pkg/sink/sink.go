// Package sink implements the output sinks the CLI writes receipts,
// bundles, and trace artifacts to: local filesystem, S3, or GCS, selected
// by the destination URI's scheme.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink writes a byte-exact artifact to a destination addressed by URI.
type Sink interface {
	Write(ctx context.Context, uri string, data []byte) error
}

// Resolve picks the Sink implementation for a destination URI's scheme:
// "s3://bucket/key", "gs://bucket/object", or a local filesystem path.
func Resolve(ctx context.Context, uri string) (Sink, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		return newS3Sink(ctx)
	case strings.HasPrefix(uri, "gs://"):
		return newGCSSink(ctx)
	default:
		return LocalSink{}, nil
	}
}

// LocalSink writes to the local filesystem, creating parent directories as
// needed. A "file://" prefix on the path is stripped.
type LocalSink struct{}

func (LocalSink) Write(_ context.Context, path string, data []byte) error {
	path = strings.TrimPrefix(path, "file://")
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sink: failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sink: failed to write %s: %w", path, err)
	}
	return nil
}

// s3Sink writes to S3, grounded on the teacher's artifacts.S3Store.
type s3Sink struct {
	client *s3.Client
}

func newS3Sink(ctx context.Context) (Sink, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("sink: failed to load AWS config: %w", err)
	}
	return s3Sink{client: s3.NewFromConfig(awsCfg)}, nil
}

// parseS3URI splits "s3://bucket/key" into its bucket and key.
func parseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", fmt.Errorf("sink: malformed s3 uri %q: missing key", uri)
	}
	return rest[:idx], rest[idx+1:], nil
}

func (s s3Sink) Write(ctx context.Context, uri string, data []byte) error {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("sink: s3 put failed for %s: %w", uri, err)
	}
	return nil
}

// gcsSink writes to Google Cloud Storage, grounded on the teacher's
// artifacts.GCSStore.
type gcsSink struct {
	client *storage.Client
}

func newGCSSink(ctx context.Context) (Sink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("sink: failed to create GCS client: %w", err)
	}
	return gcsSink{client: client}, nil
}

// parseGCSURI splits "gs://bucket/object" into its bucket and object path.
func parseGCSURI(uri string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(uri, "gs://")
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "", "", fmt.Errorf("sink: malformed gs uri %q: missing object path", uri)
	}
	return rest[:idx], rest[idx+1:], nil
}

func (s gcsSink) Write(ctx context.Context, uri string, data []byte) error {
	bucket, object, err := parseGCSURI(uri)
	if err != nil {
		return err
	}
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("sink: gcs write failed for %s: %w", uri, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("sink: gcs close failed for %s: %w", uri, err)
	}
	return nil
}
