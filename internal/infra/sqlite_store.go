package infra

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// BackendSQLite names the plain pure-Go SQLite profile store.
const BackendSQLite = "sqlite"

// NewSQLiteProfileStore opens dataDir/profiles.db without encryption.
// Used on builds where cgo (and therefore SQLCipher) is unavailable.
func NewSQLiteProfileStore(dataDir string, logger *zap.Logger) (*SQLProfileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, profileDBName)
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return newSQLProfileStore(db, dbPath, BackendSQLite, logger)
}
