// Package store persists one summary document per city and date.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

// ErrPersistenceUnavailable is returned when a document is missing or cannot be read.
var ErrPersistenceUnavailable = errors.New("persisted summary unavailable")

const docExt = ".json"

// FileStore keeps documents as {dir}/{city}-{date}.json. Writes go through a temp file and
// rename so a reader sees either the old or the new document, never a partial one.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory documents are stored in.
func (s *FileStore) Dir() string { return s.dir }

// Save writes doc, replacing any existing document for the same key.
func (s *FileStore) Save(ctx context.Context, doc models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(doc.Key())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Key(), err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*"+docExt)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", doc.Key(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", doc.Key(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", doc.Key(), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", doc.Key(), err)
	}
	return nil
}

// Load reads the document for city and date. Any failure wraps ErrPersistenceUnavailable.
func (s *FileStore) Load(ctx context.Context, city, date string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return models.Document{}, err
	}
	key := models.DocumentKey(city, date)
	path, err := s.path(key)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Document{}, fmt.Errorf("%w: no document for %s: %w", ErrPersistenceUnavailable, key, fs.ErrNotExist)
		}
		return models.Document{}, fmt.Errorf("%w: read %s: %v", ErrPersistenceUnavailable, key, err)
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: decode %s: %v", ErrPersistenceUnavailable, key, err)
	}
	return doc, nil
}

// Keys lists stored document keys in lexical order.
func (s *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, docExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// path maps a key to a file inside dir, rejecting keys that would escape it.
func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return filepath.Join(s.dir, key+docExt), nil
}
