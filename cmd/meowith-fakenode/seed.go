package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meowith/connector-go/nodetest"
)

// seed stores every regular file under dir in the node, keyed by its
// slash-separated path relative to dir.
func seed(node *nodetest.Node, dir string, log *slog.Logger) (int, error) {
	var count int
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := node.PutFile(filepath.ToSlash(rel), data); err != nil {
			return fmt.Errorf("seeding %s: %w", rel, err)
		}

		log.Debug("seeded", "path", filepath.ToSlash(rel), "size", len(data))
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking %s: %w", dir, err)
	}

	return count, nil
}
