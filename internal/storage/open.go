package storage

import (
	"errors"
	"strings"

	"plantcare/internal/calendar"
	logx "plantcare/pkg/logx"
)

// Open initializes the configured store. An empty driver means "memory".
func Open(cfg Config, norm calendar.Normalizer, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "memory", "mem":
		return NewMemory(norm), nil
	case "file":
		return openFile(cfg, norm, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, norm, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
