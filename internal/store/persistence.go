package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Persistence handles the disk I/O for the MemStore: one JSON file per
// collection.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler, creating dir if needed.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveCollection writes a single collection to disk atomically.
func (p *Persistence) SaveCollection(collection string, data map[string]Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, collection+".json")
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection %s: %w", collection, err)
	}

	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return fmt.Errorf("failed to write collection %s: %w", collection, err)
	}

	// Either the old file or the new one survives a crash, never a torn write.
	return os.Rename(tempPath, filePath)
}

// LoadAll returns every collection found in the data directory. Unreadable
// files are skipped with a warning.
func (p *Persistence) LoadAll() (map[string]map[string]Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := make(map[string]map[string]Document)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		collection := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			slog.Warn("could not read collection file", "file", file.Name(), "error", err)
			continue
		}

		var docs map[string]Document
		if err := json.Unmarshal(content, &docs); err != nil {
			slog.Warn("could not unmarshal collection file", "file", file.Name(), "error", err)
			continue
		}
		all[collection] = docs
	}
	return all, nil
}
