package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Persistence handles the disk I/O for the MemStore.
// Every key lives in its own <key>.json file inside DataDir.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	logger  *zap.Logger
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string, logger *zap.Logger) (*Persistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir, logger: logger}, nil
}

func (p *Persistence) path(key string) string {
	return filepath.Join(p.DataDir, key+".json")
}

// SaveKey writes a single key's value to its JSON file atomically.
func (p *Persistence) SaveKey(key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := p.path(key)
	tempPath := filePath + ".tmp"

	// 1. Write to a temporary file first
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	// 2. Atomic rename: readers see either the old file or the new one.
	return os.Rename(tempPath, filePath)
}

// RemoveKey deletes the file backing key. A missing file is not an error.
func (p *Persistence) RemoveKey(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// LoadAll returns every key found in the data directory.
// Unreadable or corrupt files are skipped with a warning.
func (p *Persistence) LoadAll() (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string][]byte)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		key := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			p.logger.Warn("could not read key file", zap.String("file", file.Name()), zap.Error(err))
			continue
		}
		if !json.Valid(content) {
			p.logger.Warn("skipping corrupt key file", zap.String("file", file.Name()))
			continue
		}
		allData[key] = content
	}
	return allData, nil
}
