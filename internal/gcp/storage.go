package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable.
func GetEnvInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

// GetEnvDuration reads a duration environment variable such as "30s".
func GetEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// It's a shared utility for all services.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil // Not a failure in an idempotent workflow.
		}
		slog.Error("Failed to copy content to GCS object", "gcsObject", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		slog.Error("Failed to close GCS writer", "gcsObject", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// ErrObjectTooLarge is returned by ReadObject when the object exceeds the limit.
var ErrObjectTooLarge = errors.New("object exceeds size limit")

// ObjectTooLargeError reports an oversized object together with the size GCS
// recorded for it. Size is 0 when GCS did not report one.
type ObjectTooLargeError struct {
	Bucket, Object string
	Size           int64
}

func (e *ObjectTooLargeError) Error() string {
	return fmt.Sprintf("gs://%s/%s: %v (%d bytes)", e.Bucket, e.Object, ErrObjectTooLarge, e.Size)
}

func (e *ObjectTooLargeError) Unwrap() error { return ErrObjectTooLarge }

// ReadObject downloads an object into memory, refusing objects larger than limit bytes.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string, limit int64) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	if int64(len(data)) > limit {
		return nil, &ObjectTooLargeError{Bucket: bucket, Object: object, Size: max(reader.Attrs.Size, 0)}
	}
	return data, nil
}

// BucketWriter stores markdown objects in one bucket.
type BucketWriter struct {
	bucket *storage.BucketHandle
	name   string
}

// NewBucketWriter returns a BucketWriter for the named bucket.
func NewBucketWriter(client *storage.Client, bucketName string) *BucketWriter {
	return &BucketWriter{bucket: client.Bucket(bucketName), name: bucketName}
}

// Save writes content once and returns the gs:// URI of the object.
func (w *BucketWriter) Save(ctx context.Context, objectName, content string) (string, error) {
	if err := SaveToGCSAtomically(ctx, w.bucket, objectName, content); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", w.name, objectName), nil
}
