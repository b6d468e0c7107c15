package infra

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

const (
	// BackendFile names the JSON file profile store.
	BackendFile = "file"

	profileFileName = "profiles.json"
)

type profileDocument struct {
	Version  int               `json:"version"`
	Profiles map[string]string `json:"profiles"`
}

// FileProfileStore implements domain.ProfileStore with a JSON document that
// is replaced atomically on every Set. Every replace is a new inode, so the
// document is re-read when its identity, mtime or size changes and a CLI
// writer and the daemon stay consistent.
type FileProfileStore struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]domain.ProfileKind
	seen  os.FileInfo // nil until the document was read
}

// NewFileProfileStore opens dataDir/profiles.json, creating nothing until the
// first Set.
func NewFileProfileStore(dataDir string, logger *zap.Logger) (*FileProfileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return NewFileProfileStoreWithPath(filepath.Join(dataDir, profileFileName), logger)
}

// NewFileProfileStoreWithPath opens a store at a specific path (for testing).
func NewFileProfileStoreWithPath(path string, logger *zap.Logger) (*FileProfileStore, error) {
	s := &FileProfileStore{
		path:   path,
		logger: logger,
		cache:  make(map[string]domain.ProfileKind),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the stored profile or ProfileDefault.
func (s *FileProfileStore) Get(packageID string) domain.ProfileKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reloadLocked(); err != nil {
		s.logger.Warn("profile file unreadable, using cached mappings",
			zap.String("path", s.path),
			zap.Error(err))
	}
	if p, ok := s.cache[packageID]; ok {
		return p
	}
	return domain.ProfileDefault
}

// Set writes the whole document with the new mapping. The in-memory view is
// only updated after the rename succeeded.
func (s *FileProfileStore) Set(packageID string, profile domain.ProfileKind) error {
	if err := validateEntry(packageID, profile); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reloadLocked(); err != nil {
		return domain.NewStoreIOError("set", packageID, err)
	}

	next := maps.Clone(s.cache)
	next[packageID] = profile

	doc := profileDocument{Version: 1, Profiles: make(map[string]string, len(next))}
	for pkg, p := range next {
		doc.Profiles[pkg] = string(p)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.NewStoreIOError("set", packageID, err)
	}
	if err := writeFileAtomic(s.path, data, 0600); err != nil {
		return domain.NewStoreIOError("set", packageID, err)
	}

	s.cache = next
	if info, err := os.Stat(s.path); err == nil {
		s.seen = info
	}
	return nil
}

// Entries yields a sorted snapshot taken when the range starts.
func (s *FileProfileStore) Entries() iter.Seq2[string, domain.ProfileKind] {
	return func(yield func(string, domain.ProfileKind) bool) {
		s.mu.Lock()
		if err := s.reloadLocked(); err != nil {
			s.logger.Warn("profile file unreadable, listing cached mappings", zap.Error(err))
		}
		snapshot := maps.Clone(s.cache)
		s.mu.Unlock()

		for _, pkg := range slices.Sorted(maps.Keys(snapshot)) {
			if !yield(pkg, snapshot[pkg]) {
				return
			}
		}
	}
}

// Path returns the document path.
func (s *FileProfileStore) Path() string {
	return s.path
}

// Close is a no-op; the file is not held open.
func (s *FileProfileStore) Close() error {
	return nil
}

// reloadLocked re-reads the document if it changed on disk. A missing file
// is an empty store; a corrupt document leaves the cache untouched.
func (s *FileProfileStore) reloadLocked() error {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		if s.seen != nil {
			s.cache = make(map[string]domain.ProfileKind)
			s.seen = nil
		}
		return nil
	}
	if err != nil {
		return err
	}
	if s.seen != nil && os.SameFile(info, s.seen) &&
		info.ModTime().Equal(s.seen.ModTime()) && info.Size() == s.seen.Size() {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	cache := make(map[string]domain.ProfileKind, len(doc.Profiles))
	for pkg, raw := range doc.Profiles {
		p := domain.ProfileKind(raw)
		if !p.IsValid() {
			s.logger.Warn("stored profile not recognised, using default",
				zap.String("package", pkg),
				zap.String("profile", raw))
			p = domain.ProfileDefault
		}
		cache[pkg] = p
	}

	s.cache = cache
	s.seen = info
	return nil
}

// Ensure FileProfileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*FileProfileStore)(nil)
