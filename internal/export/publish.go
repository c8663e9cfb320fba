package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Uploader stores export artifacts. objectstore.MinioStore implements it.
type Uploader interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// ObjectKey builds the bucket key for a project's artifact:
// "<project>/<pipeline>/<name>".
func ObjectKey(projectID, pipeline, name string) string {
	clean := func(s string) string {
		s = strings.TrimSpace(strings.ReplaceAll(s, "/", "_"))
		if s == "" {
			return "_"
		}
		return s
	}
	return path.Join(clean(projectID), clean(pipeline), clean(name))
}

// ContentType guesses the MIME type from the key's extension.
func ContentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".mmd":
		return "text/vnd.mermaid"
	default:
		return "application/octet-stream"
	}
}

// Publish uploads data under key.
func Publish(ctx context.Context, up Uploader, key string, data []byte) error {
	if err := up.Put(ctx, key, bytes.NewReader(data), int64(len(data)), ContentType(key)); err != nil {
		return fmt.Errorf("export: publish %s: %w", key, err)
	}
	return nil
}
