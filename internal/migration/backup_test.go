package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/categorize"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/stretchr/testify/require"
)

func mustTaxonomy(t *testing.T) *categorize.Taxonomy {
	t.Helper()
	tax, err := categorize.DefaultTaxonomy()
	require.NoError(t, err)
	return tax
}

type mockMirror struct {
	MirrorBackupFunc func(ctx context.Context, dir string, files []string) error
}

func (m *mockMirror) MirrorBackup(ctx context.Context, dir string, files []string) error {
	return m.MirrorBackupFunc(ctx, dir, files)
}

func TestBackups_LatestByName(t *testing.T) {
	dir := t.TempDir()
	b := NewBackups(dir)

	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	snap := store.Snapshot{Rules: []domain.CategoryRule{{ID: 1, Pattern: "SHELL", Category: "FUEL", Enabled: true}}}
	first, err := b.Create(context.Background(), snap)
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	snap.Rules[0].Category = "TRANSPORT_FUEL"
	second, err := b.Create(context.Background(), snap)
	require.NoError(t, err)
	require.Less(t, first.Name, second.Name)

	latest, err := b.Latest()
	require.NoError(t, err)
	require.Equal(t, second.Name, latest.Name)
	require.True(t, latest.CreatedAt.Equal(clock))

	loaded, err := b.Load(latest)
	require.NoError(t, err)
	require.Equal(t, "TRANSPORT_FUEL", loaded.Rules[0].Category)
}

func TestBackups_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	b := NewBackups(dir)

	set, err := b.Create(context.Background(), store.Snapshot{})
	require.NoError(t, err)

	path := filepath.Join(dir, set.Name+"_rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"ID":9}]`), 0o644))

	_, err = b.Load(set)
	require.ErrorContains(t, err, "checksum mismatch")
}

func TestBackups_MirrorFailureIsNotFatal(t *testing.T) {
	var mirrored []string
	b := NewBackups(t.TempDir()).WithMirror(&mockMirror{MirrorBackupFunc: func(ctx context.Context, dir string, files []string) error {
		mirrored = files
		return os.ErrPermission
	}})

	set, err := b.Create(context.Background(), store.Snapshot{})
	require.NoError(t, err)
	require.Equal(t, set.Files(), mirrored)
	require.Len(t, mirrored, 5)
}

func TestBackups_EmptyDir(t *testing.T) {
	_, err := NewBackups(filepath.Join(t.TempDir(), "missing")).Latest()
	require.ErrorIs(t, err, ErrNoBackup)
}
