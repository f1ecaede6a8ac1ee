package recurrence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateSkipped marks a plant the sweep left alone because a pending
	// watering task already exists for the computed day. It is an outcome, not a failure.
	ErrDuplicateSkipped = errors.New("pending watering task already exists")

	ErrInvalidFrequency = errors.New("watering frequency must be > 0")
)

// PlantFailure records why one plant could not be processed during a sweep.
type PlantFailure struct {
	PlantID string `json:"plant_id"`
	Err     error  `json:"-"`
	// Message is Err's text, kept for JSON output.
	Message string `json:"error"`
}

func newPlantFailure(plantID string, err error) PlantFailure {
	f := PlantFailure{PlantID: plantID, Err: err}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

func (f PlantFailure) Error() string { return fmt.Sprintf("plant %s: %v", f.PlantID, f.Err) }

func (f PlantFailure) Unwrap() error { return f.Err }

// PartialSweepError is returned by Summary.Err when at least one plant failed.
// The other plants were still processed.
type PartialSweepError struct {
	Failures []PlantFailure
}

func (e *PartialSweepError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("sweep: %d plant(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every per-plant cause to errors.Is / errors.As.
func (e *PartialSweepError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}
