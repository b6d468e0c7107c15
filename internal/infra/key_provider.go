package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

const (
	storeKeyFileName = ".profiles.key"
	storeKeySize     = 32 // 256-bit SQLCipher raw key
)

// StoreKeyFile keeps the SQLCipher raw key hex-encoded in dataDir. The file
// is written once and never replaced: the database is unreadable without
// the key it was created with.
type StoreKeyFile struct {
	path string
}

// NewStoreKeyFile returns the key file for dataDir.
func NewStoreKeyFile(dataDir string) *StoreKeyFile {
	return &StoreKeyFile{path: filepath.Join(dataDir, storeKeyFileName)}
}

// GetKey decodes the stored key.
func (k *StoreKeyFile) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", k.path, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", k.path, err)
	}
	if err := checkKeySize(key); err != nil {
		return nil, fmt.Errorf("%s: %w", k.path, err)
	}
	return key, nil
}

// StoreKey creates the key file. If one already exists it is left alone and
// the returned error matches os.ErrExist.
func (k *StoreKeyFile) StoreKey(key []byte) error {
	if err := checkKeySize(key); err != nil {
		return err
	}
	return createFileExclusive(k.path, []byte(hex.EncodeToString(key)+"\n"), 0600)
}

// KeyExists reports whether the key file is present.
func (k *StoreKeyFile) KeyExists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Path returns the key file location.
func (k *StoreKeyFile) Path() string {
	return k.path
}

// GenerateStoreKey returns a fresh random key.
func GenerateStoreKey() ([]byte, error) {
	key := make([]byte, storeKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate store key: %w", err)
	}
	return key, nil
}

// EnsureStoreKey returns the persisted key, creating it on first use. When
// the CLI and the daemon race on a fresh data directory both end up with
// whichever key reached the disk first.
func EnsureStoreKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}

	key, err := GenerateStoreKey()
	if err != nil {
		return nil, err
	}
	err = provider.StoreKey(key)
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, os.ErrExist):
		return provider.GetKey()
	default:
		return nil, err
	}
}

func checkKeySize(key []byte) error {
	if len(key) != storeKeySize {
		return fmt.Errorf("store key is %d bytes, want %d", len(key), storeKeySize)
	}
	return nil
}

// createFileExclusive writes data to a temp file and hard-links it into
// place, so path appears complete or not at all and is never overwritten.
func createFileExclusive(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".new-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Link(tmp.Name(), path)
}

var _ domain.KeyProvider = (*StoreKeyFile)(nil)
