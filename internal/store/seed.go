package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// SeedDatasets loads every .txt benchmark file from dir into the store,
// keyed by file name without extension. Existing entries are overwritten
// so repeated startups stay idempotent.
func SeedDatasets(ctx context.Context, s Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		name := strings.TrimSuffix(e.Name(), ".txt")
		if err := s.SaveDataset(ctx, name, string(content)); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
