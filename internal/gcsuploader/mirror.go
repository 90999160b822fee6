// Package gcsuploader moves statements and migration backup sets to and from
// Google Cloud Storage.
package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/migration"
	"google.golang.org/api/iterator"
)

const manifestSuffix = "_manifest.json"

// BackupMirror uploads backup files under bucket/prefix and restores the
// latest set from there.
type BackupMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBackupMirror creates a BackupMirror with its own storage client.
func NewBackupMirror(ctx context.Context, bucket, prefix string) (*BackupMirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewBackupMirror: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBackupMirror: create storage client: %w", err)
	}
	return &BackupMirror{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Close closes the storage client.
func (m *BackupMirror) Close() error {
	return m.client.Close()
}

// MirrorBackup uploads files from dir. The manifest should come last in files
// so a partially mirrored set is never picked up by RestoreLatest.
func (m *BackupMirror) MirrorBackup(ctx context.Context, dir string, files []string) error {
	log := logger.FromContext(ctx)
	for _, name := range files {
		object := objectName(m.prefix, name)
		if err := UploadFileWithClient(ctx, m.client, m.bucket, object, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("MirrorBackup: %s: %w", name, err)
		}
		log.Debug().Str("object", "gs://"+m.bucket+"/"+object).Msg("Backup file mirrored")
	}
	return nil
}

// RestoreLatest downloads the newest mirrored backup set into dir and returns
// its name.
func (m *BackupMirror) RestoreLatest(ctx context.Context, dir string) (string, error) {
	var objects []string
	it := m.client.Bucket(m.bucket).Objects(ctx, &storage.Query{Prefix: listPrefix(m.prefix)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("RestoreLatest: listing objects: %w", err)
		}
		objects = append(objects, attrs.Name)
	}

	set := latestSetName(objects)
	if set == "" {
		return "", fmt.Errorf("RestoreLatest: no backup set under gs://%s/%s", m.bucket, m.prefix)
	}

	for _, object := range objects {
		name := path.Base(object)
		if !strings.HasPrefix(name, set+"_") {
			continue
		}
		if err := DownloadFileWithClient(ctx, m.client, m.bucket, object, filepath.Join(dir, name)); err != nil {
			return "", fmt.Errorf("RestoreLatest: %s: %w", name, err)
		}
	}

	log := logger.FromContext(ctx)
	log.Info().Str("backup", set).Str("dir", dir).Msg("Backup restored from GCS")
	return set, nil
}

func objectName(prefix, file string) string {
	if prefix == "" {
		return file
	}
	return prefix + "/" + file
}

func listPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// latestSetName picks the greatest backup set name that has a manifest.
func latestSetName(objects []string) string {
	var sets []string
	for _, o := range objects {
		name := path.Base(o)
		if strings.HasSuffix(name, manifestSuffix) {
			sets = append(sets, strings.TrimSuffix(name, manifestSuffix))
		}
	}
	if len(sets) == 0 {
		return ""
	}
	sort.Strings(sets)
	return sets[len(sets)-1]
}

var _ migration.BackupMirror = (*BackupMirror)(nil)
