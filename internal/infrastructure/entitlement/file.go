package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	domentitlement "github.com/Zhima-Mochi/paywall/internal/domain/entitlement"
)

// FileStore persists the flag as {"hasPaidMelya":"true"} in a local JSON document,
// the terminal counterpart of the browser's local storage.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath resolves the per-user state file.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "paywall", "state.json"), nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(ctx context.Context) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}
	return domentitlement.Decode(doc[domentitlement.Key]), nil
}

func (s *FileStore) Write(ctx context.Context, granted bool) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if granted {
		doc[domentitlement.Key] = domentitlement.Granted
	} else {
		delete(doc, domentitlement.Key)
	}
	return s.save(doc)
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.Write(ctx, false)
}

func (s *FileStore) load() (map[string]string, error) {
	doc := map[string]string{}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domentitlement.ErrUnavailable, s.path, err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domentitlement.ErrUnavailable, s.path, err)
	}
	return doc, nil
}

// save writes through a temp file and rename so a crash never leaves half a document.
func (s *FileStore) save(doc map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", domentitlement.ErrUnavailable, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("%w: %w", domentitlement.ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", domentitlement.ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", domentitlement.ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", domentitlement.ErrUnavailable, err)
	}
	return nil
}
