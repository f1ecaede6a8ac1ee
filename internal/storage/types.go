package storage

import (
	"context"
	"errors"
	"time"

	"plantcare/internal/care"
)

var ErrClosed = errors.New("storage closed")

// ErrStoreLocked is returned by Open when another process holds a file store.
var ErrStoreLocked = errors.New("store is in use by another process")

var errEmptyPlantID = errors.New("plant id is empty")

// Config configures storage.
//
// Driver values:
//   - "memory": process-local maps (default; nothing survives a restart)
//   - "file": JSON snapshot + JSON Lines journal next to Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is both the Task Store and the Plant Directory.
//
// PutPlant and ListPlants exist for seeding (CLI, tests); the scheduling core
// itself only reads plants.
type Store interface {
	care.TaskStore
	care.PlantDirectory

	PutPlant(ctx context.Context, p care.Plant) error
	ListPlants(ctx context.Context) ([]care.Plant, error)
	Close() error
}
