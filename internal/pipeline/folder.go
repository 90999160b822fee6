package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/logger"
)

// DirLister lists PDFs on the local filesystem. When Subfolders is set only
// those folders under the root are scanned.
type DirLister struct {
	Subfolders []string
}

// ListPDFs implements FolderLister.
func (l DirLister) ListPDFs(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ListPDFs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ListPDFs: %s is not a directory", root)
	}

	roots := []string{root}
	if len(l.Subfolders) > 0 {
		roots = roots[:0]
		for _, sub := range l.Subfolders {
			roots = append(roots, filepath.Join(root, sub))
		}
	}

	var files []string
	for _, dir := range roots {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir && errors.Is(err, fs.ErrNotExist) {
					log := logger.FromContext(ctx)
					log.Warn().Str("folder", dir).Msg("Subfolder does not exist, skipping")
					return fs.SkipDir
				}
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ListPDFs: walking %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

var _ FolderLister = DirLister{}
