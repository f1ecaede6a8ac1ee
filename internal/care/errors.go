package care

import (
	"errors"
	"fmt"

	"plantcare/internal/calendar"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidDate is the calendar sentinel, re-exported so API layers only
	// need to import this package.
	ErrInvalidDate = calendar.ErrInvalidDate
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind string // "plant" | "task"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func PlantNotFound(id string) error { return &NotFoundError{Kind: "plant", ID: id} }

func TaskNotFound(id string) error { return &NotFoundError{Kind: "task", ID: id} }
