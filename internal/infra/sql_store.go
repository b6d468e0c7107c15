package infra

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

const profileDBName = "profiles.db"

// SQLProfileStore implements domain.ProfileStore on a SQLite-compatible
// database. Both the SQLCipher and the pure-Go driver share this code.
type SQLProfileStore struct {
	db      *sql.DB
	dbPath  string
	backend string
	logger  *zap.Logger
}

// newSQLProfileStore finishes opening db: connectivity check, pragmas, schema.
func newSQLProfileStore(db *sql.DB, dbPath, backend string, logger *zap.Logger) (*SQLProfileStore, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", backend, err)
	}

	// SQLite is single-writer; one connection also keeps per-connection
	// pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLProfileStore{
		db:      db,
		dbPath:  dbPath,
		backend: backend,
		logger:  logger,
	}

	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *SQLProfileStore) applyPragmas() error {
	// synchronous=FULL: Set must survive power loss once it returns.
	pragmas := []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA synchronous = FULL`,
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// createTables creates the schema if it doesn't exist.
func (s *SQLProfileStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS app_profiles (
		package_id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', '1')`)
	return err
}

// Get returns the stored profile or ProfileDefault.
func (s *SQLProfileStore) Get(packageID string) domain.ProfileKind {
	var raw string
	err := s.db.QueryRow(`SELECT profile FROM app_profiles WHERE package_id = ?`, packageID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProfileDefault
	}
	if err != nil {
		s.logger.Warn("profile lookup failed, using default",
			zap.String("package", packageID),
			zap.String("backend", s.backend),
			zap.Error(err))
		return domain.ProfileDefault
	}
	return s.decode(packageID, raw)
}

// Set upserts the mapping in a single transaction.
func (s *SQLProfileStore) Set(packageID string, profile domain.ProfileKind) error {
	if err := validateEntry(packageID, profile); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return domain.NewStoreIOError("set", packageID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO app_profiles (package_id, profile, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(package_id) DO UPDATE SET
			profile = excluded.profile,
			updated_at = excluded.updated_at`,
		packageID, string(profile), time.Now().Unix(),
	)
	if err != nil {
		return domain.NewStoreIOError("set", packageID, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreIOError("set", packageID, err)
	}
	return nil
}

// Entries lazily yields stored mappings ordered by package id.
func (s *SQLProfileStore) Entries() iter.Seq2[string, domain.ProfileKind] {
	return func(yield func(string, domain.ProfileKind) bool) {
		rows, err := s.db.Query(`SELECT package_id, profile FROM app_profiles ORDER BY package_id`)
		if err != nil {
			s.logger.Warn("failed to list profiles", zap.Error(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var pkg, raw string
			if err := rows.Scan(&pkg, &raw); err != nil {
				s.logger.Warn("failed to scan profile row", zap.Error(err))
				return
			}
			if !yield(pkg, s.decode(pkg, raw)) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			s.logger.Warn("profile listing interrupted", zap.Error(err))
		}
	}
}

// Path returns the database file path.
func (s *SQLProfileStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *SQLProfileStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// decode maps a stored value to a kind; unrecognised values read as default
// so a downgrade never breaks foreground resolution.
func (s *SQLProfileStore) decode(packageID, raw string) domain.ProfileKind {
	p := domain.ProfileKind(raw)
	if !p.IsValid() {
		s.logger.Warn("stored profile not recognised, using default",
			zap.String("package", packageID),
			zap.String("profile", raw))
		return domain.ProfileDefault
	}
	return p
}

func validateEntry(packageID string, profile domain.ProfileKind) error {
	if strings.TrimSpace(packageID) == "" {
		return domain.ErrInvalidPackageID
	}
	if !profile.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProfile, profile)
	}
	return nil
}

// Ensure SQLProfileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*SQLProfileStore)(nil)
