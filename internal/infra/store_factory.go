package infra

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
)

// OpenProfileStore opens the profile store for backend under dataDir.
// The encrypted backend generates its key on first use.
func OpenProfileStore(backend, dataDir string, logger *zap.Logger) (domain.ProfileStore, error) {
	switch backend {
	case BackendEncrypted, "":
		key, err := EnsureStoreKey(NewStoreKeyFile(dataDir))
		if err != nil {
			return nil, fmt.Errorf("store key: %w", err)
		}
		return NewEncryptedProfileStore(dataDir, key, logger)
	case BackendSQLite:
		return NewSQLiteProfileStore(dataDir, logger)
	case BackendFile:
		return NewFileProfileStore(dataDir, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// StoreBackends lists the accepted store.backend values.
func StoreBackends() []string {
	return []string{BackendEncrypted, BackendSQLite, BackendFile}
}
