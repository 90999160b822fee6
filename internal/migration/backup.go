package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// ErrNoBackup is returned when the backup directory holds no usable backup set.
var ErrNoBackup = errors.New("no backup found")

const (
	backupPrefix   = "backup_"
	manifestSuffix = "_manifest.json"
	stampLayout    = "20060102T150405.000000000Z"
)

// BackupSet names one timestamped group of backup files.
type BackupSet struct {
	Dir       string
	Name      string
	CreatedAt time.Time
}

// Manifest records the checksum of every file of a backup set.
type Manifest struct {
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Files     map[string]string `json:"files"`
	Counts    map[string]int    `json:"counts"`
}

// ManifestPath is the path of the set's manifest file.
func (b BackupSet) ManifestPath() string {
	return filepath.Join(b.Dir, b.Name+manifestSuffix)
}

// Files lists the file names belonging to the set, manifest last.
func (b BackupSet) Files() []string {
	names := make([]string, 0, len(backupParts)+1)
	for _, part := range backupParts {
		names = append(names, b.Name+"_"+part+".json")
	}
	return append(names, b.Name+manifestSuffix)
}

var backupParts = []string{"transactions", "rules", "overrides", "summaries"}

// BackupMirror copies a finished backup set somewhere off the local disk.
type BackupMirror interface {
	MirrorBackup(ctx context.Context, dir string, files []string) error
}

// Backups writes and reads snapshot backup sets in one directory.
type Backups struct {
	dir    string
	now    func() time.Time
	mirror BackupMirror
}

// NewBackups creates a backup directory handler.
func NewBackups(dir string) *Backups {
	return &Backups{dir: dir, now: time.Now}
}

// WithMirror sets an optional off-disk mirror. Mirror failures are logged.
func (b *Backups) WithMirror(m BackupMirror) *Backups {
	b.mirror = m
	return b
}

// Dir returns the backup directory.
func (b *Backups) Dir() string {
	return b.dir
}

// Create writes snap as a new backup set. The manifest is written last, so a
// set without a manifest is never picked up by Latest.
func (b *Backups) Create(ctx context.Context, snap store.Snapshot) (BackupSet, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return BackupSet{}, fmt.Errorf("Create: backup dir: %w", err)
	}

	created := b.now().UTC()
	set := BackupSet{Dir: b.dir, Name: backupPrefix + created.Format(stampLayout), CreatedAt: created}

	parts := map[string]interface{}{
		"transactions": snap.Transactions,
		"rules":        snap.Rules,
		"overrides":    snap.Overrides,
		"summaries":    snap.Summaries,
	}
	manifest := Manifest{
		Name:      set.Name,
		CreatedAt: created,
		Files:     make(map[string]string, len(parts)),
		Counts: map[string]int{
			"transactions": len(snap.Transactions),
			"rules":        len(snap.Rules),
			"overrides":    len(snap.Overrides),
			"summaries":    len(snap.Summaries),
		},
	}

	for _, part := range backupParts {
		name := set.Name + "_" + part + ".json"
		sum, err := writeJSON(filepath.Join(b.dir, name), parts[part])
		if err != nil {
			return BackupSet{}, fmt.Errorf("Create: writing %s: %w", name, err)
		}
		manifest.Files[name] = sum
	}
	if _, err := writeJSON(set.ManifestPath(), manifest); err != nil {
		return BackupSet{}, fmt.Errorf("Create: writing manifest: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("backup", set.Name).
		Int("transactions", len(snap.Transactions)).
		Int("rules", len(snap.Rules)).
		Msg("Backup written")

	if b.mirror != nil {
		if err := b.mirror.MirrorBackup(ctx, b.dir, set.Files()); err != nil {
			log.Warn().Err(err).Str("backup", set.Name).Msg("Backup mirror failed")
		}
	}

	return set, nil
}

// Latest returns the most recent backup set by name order.
func (b *Backups) Latest() (BackupSet, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return BackupSet{}, ErrNoBackup
		}
		return BackupSet{}, fmt.Errorf("Latest: %w", err)
	}

	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, backupPrefix) && strings.HasSuffix(n, manifestSuffix) {
			names = append(names, strings.TrimSuffix(n, manifestSuffix))
		}
	}
	if len(names) == 0 {
		return BackupSet{}, ErrNoBackup
	}
	sort.Strings(names)

	name := names[len(names)-1]
	created, _ := time.Parse(stampLayout, strings.TrimPrefix(name, backupPrefix))
	return BackupSet{Dir: b.dir, Name: name, CreatedAt: created}, nil
}

// Load reads a backup set back, verifying every checksum in its manifest.
func (b *Backups) Load(set BackupSet) (store.Snapshot, error) {
	var manifest Manifest
	if err := readJSON(set.ManifestPath(), &manifest); err != nil {
		return store.Snapshot{}, fmt.Errorf("Load: manifest: %w", err)
	}

	var snap store.Snapshot
	targets := map[string]interface{}{
		"transactions": &snap.Transactions,
		"rules":        &snap.Rules,
		"overrides":    &snap.Overrides,
		"summaries":    &snap.Summaries,
	}
	for _, part := range backupParts {
		name := set.Name + "_" + part + ".json"
		want, ok := manifest.Files[name]
		if !ok {
			return store.Snapshot{}, fmt.Errorf("Load: %s missing from manifest", name)
		}
		path := filepath.Join(set.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return store.Snapshot{}, fmt.Errorf("Load: %w", err)
		}
		if got := checksum(data); got != want {
			return store.Snapshot{}, fmt.Errorf("Load: %s checksum mismatch (want %s, got %s)", name, want, got)
		}
		if err := json.Unmarshal(data, targets[part]); err != nil {
			return store.Snapshot{}, fmt.Errorf("Load: decoding %s: %w", name, err)
		}
	}

	return snap, nil
}

func writeJSON(path string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return checksum(data), nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
