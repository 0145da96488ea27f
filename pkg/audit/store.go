package audit

import (
	"fmt"
	"path/filepath"

	"github.com/freitascorp/platform-mcp/pkg/logger"
)

// StoreConfig selects and parameterizes an audit backend.
type StoreConfig struct {
	Backend     string // "none", "file", "sqlite", "postgres"
	Dir         string // file log directory, and default SQLite location
	SQLitePath  string
	PostgresDSN string
}

// NewStore opens the configured backend. The "none" backend returns a nil
// Store and no error.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil

	case "file":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file audit store requires AUDIT_DIR")
		}
		logger.InfoCF("audit", "Using file backend", map[string]any{"dir": cfg.Dir})
		return NewFileStore(cfg.Dir)

	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			if cfg.Dir == "" {
				return nil, fmt.Errorf("sqlite audit store requires AUDIT_SQLITE_PATH or AUDIT_DIR")
			}
			path = filepath.Join(cfg.Dir, "audit.db")
		}
		logger.InfoCF("audit", "Using SQLite backend", map[string]any{"path": path})
		return NewSQLiteStore(path)

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres audit store requires a DSN")
		}
		logger.InfoCF("audit", "Using PostgreSQL backend", nil)
		return NewPostgresStore(cfg.PostgresDSN)

	default:
		return nil, fmt.Errorf("unknown audit backend: %q (supported: none, file, sqlite, postgres)", cfg.Backend)
	}
}
