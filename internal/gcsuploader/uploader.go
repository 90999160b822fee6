package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// UploadFileWithClient uploads a local file to a GCS bucket under the given object name.
func UploadFileWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// FetchStatement downloads the PDF at gcsURI into destDir and returns the
// local path. The local file keeps the object's base name so the classifier
// sees the original file name.
func FetchStatement(ctx context.Context, gcsURI, destDir string) (string, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return "", err
	}

	name := ExtractFilenameFromGCSURI(gcsURI)
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return "", fmt.Errorf("FetchStatement: %s is not a PDF", gcsURI)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("FetchStatement: creating storage client: %w", err)
	}
	defer storageClient.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("FetchStatement: %w", err)
	}

	dest := filepath.Join(destDir, name)
	if err := DownloadFileWithClient(ctx, storageClient, bucketName, objectPath, dest); err != nil {
		return "", fmt.Errorf("FetchStatement: %s: %w", gcsURI, err)
	}
	return dest, nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(gcsURI string) (string, string, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.json" → "file.json"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
