package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// DownloadFileWithClient copies an object into destPath.
func DownloadFileWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, destPath string) error {
	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", destPath, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("read GCS object: %w", err)
	}
	return f.Close()
}
