package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetEnvDuration reads a Go duration such as "90s" from the environment.
func GetEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", key, d)
	}
	return d, nil
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not a failure: deliveries are idempotent.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		slog.Error("Failed to copy content to GCS object", "object", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Object already exists, skipping.", "object", objectName)
			return nil
		}
		slog.Error("Failed to close GCS writer", "object", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// ErrObjectTooLarge is returned by ReadObject for objects above the size limit.
var ErrObjectTooLarge = errors.New("object too large")

// ReadObject reads a whole GCS object, refusing anything larger than maxBytes.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string, maxBytes int64) ([]byte, *storage.ObjectAttrs, error) {
	handle := client.Bucket(bucket).Object(object)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read attributes of gs://%s/%s: %w", bucket, object, err)
	}
	if attrs.Size > maxBytes {
		return nil, attrs, fmt.Errorf("%w: gs://%s/%s is %d bytes, limit is %d", ErrObjectTooLarge, bucket, object, attrs.Size, maxBytes)
	}
	reader, err := handle.NewReader(ctx)
	if err != nil {
		return nil, attrs, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(io.LimitReader(reader, maxBytes))
	if err != nil {
		return nil, attrs, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, attrs, nil
}
