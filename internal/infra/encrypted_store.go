package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	// BackendEncrypted names the SQLCipher-backed profile store.
	BackendEncrypted = "encrypted"

	encryptedProfileDBName = "profiles.enc.db"
)

// NewEncryptedProfileStore opens (or creates) an encrypted profile database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedProfileStore(dataDir string, key []byte, logger *zap.Logger) (*SQLProfileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, encryptedProfileDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	return newSQLProfileStore(db, dbPath, BackendEncrypted, logger)
}
