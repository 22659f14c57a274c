package partition

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"receiptfix/internal/records"
)

// WriteGroups emits one re-parseable feed file per group under dir, named
// group-<n>.tsv. Each file holds the original lines whose grouping key falls
// in that group, preserving original file order, so every group file is a
// valid source for a later run.
func WriteGroups(dir string, entries []records.Entry, groups []*Group) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create partition dir: %w", err)
	}

	keyGroup := make(map[int64]int)
	for _, g := range groups {
		for key := range g.Keys() {
			keyGroup[key] = g.Index
		}
	}

	paths := make([]string, len(groups))
	files := make([]*bufio.Writer, len(groups))
	handles := make([]*os.File, len(groups))
	for i, g := range groups {
		path := filepath.Join(dir, fmt.Sprintf("group-%d.tsv", g.Index+1))
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		paths[i] = path
		handles[i] = f
		files[i] = bufio.NewWriter(f)
	}
	defer func() {
		for _, f := range handles {
			if f != nil {
				_ = f.Close()
			}
		}
	}()

	for _, e := range entries {
		idx, ok := keyGroup[e.Key]
		if !ok {
			continue
		}
		if _, err := files[idx].WriteString(e.Raw + "\n"); err != nil {
			return nil, fmt.Errorf("write %s: %w", paths[idx], err)
		}
	}

	for i, w := range files {
		if err := w.Flush(); err != nil {
			return nil, fmt.Errorf("flush %s: %w", paths[i], err)
		}
		if err := handles[i].Close(); err != nil {
			return nil, fmt.Errorf("close %s: %w", paths[i], err)
		}
		handles[i] = nil
	}
	return paths, nil
}
