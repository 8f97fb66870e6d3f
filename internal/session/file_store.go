package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore keeps cookies in a single JSON file keyed by domain.
type FileStore struct {
	mu       sync.RWMutex
	filename string
	domains  map[string][]Cookie
}

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		filename: filename,
		domains:  make(map[string][]Cookie),
	}

	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load cookie file: %w", err)
	}

	return fs, nil
}

func (fs *FileStore) Load(_ context.Context, domain string) ([]Cookie, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	stored := fs.domains[domain]
	cookies := make([]Cookie, 0, len(stored))
	for _, c := range stored {
		if expired(c) {
			continue
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

func (fs *FileStore) Save(_ context.Context, domain string, cookies []Cookie) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.domains[domain] = cookies
	return fs.save()
}

func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.domains, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &fs.domains)
}
