package care

import (
	"fmt"
	"strings"
	"time"

	"plantcare/internal/calendar"
)

// TaskType is the closed set of care actions a task can represent.
type TaskType string

const (
	TaskWater     TaskType = "water"
	TaskFertilize TaskType = "fertilize"
	TaskRepot     TaskType = "repot"
	TaskLight     TaskType = "light"
	TaskOther     TaskType = "other"
)

// TaskTypes lists every valid type in display order.
var TaskTypes = []TaskType{TaskWater, TaskFertilize, TaskRepot, TaskLight, TaskOther}

// ParseTaskType accepts the canonical lowercase names (case-insensitive).
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown task type %q", ErrInvalidTask, s)
	}
	return t, nil
}

func (t TaskType) Valid() bool {
	switch t {
	case TaskWater, TaskFertilize, TaskRepot, TaskLight, TaskOther:
		return true
	}
	return false
}

// Urgent reports whether an unfinished task of this type marks its day as urgent.
func (t TaskType) Urgent() bool {
	switch t {
	case TaskWater:
		return true
	case TaskFertilize, TaskRepot, TaskLight, TaskOther:
		return false
	}
	return false
}

// Icon is the short glyph shown next to a task in list views.
func (t TaskType) Icon() string {
	switch t {
	case TaskWater:
		return "💧"
	case TaskFertilize:
		return "🌱"
	case TaskRepot:
		return "🪴"
	case TaskLight:
		return "☀️"
	case TaskOther:
		return "📝"
	}
	return ""
}

// Task is one unit of plant care.
//
// DueDate holds the stored date value verbatim (YYYY-MM-DD or an RFC3339
// timestamp). Only its calendar day matters; use a calendar.Normalizer to read it.
type Task struct {
	ID          string     `json:"id"`
	PlantID     string     `json:"plant_id"`
	Type        TaskType   `json:"type"`
	Description string     `json:"description"`
	DueDate     string     `json:"due_date"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskDraft is a creation request; the store assigns ID and timestamps.
type TaskDraft struct {
	PlantID     string   `json:"plant_id"`
	Type        TaskType `json:"type"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date"`
}

// Validate checks a draft at the write boundary. The due date must be readable
// by n so that no unparsable value ever reaches the store through this path.
func (d TaskDraft) Validate(n calendar.Normalizer) error {
	if strings.TrimSpace(d.PlantID) == "" {
		return fmt.Errorf("%w: plant_id required", ErrInvalidTask)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidTask, d.Type)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: description required", ErrInvalidTask)
	}
	if _, err := n.Normalize(d.DueDate); err != nil {
		return err
	}
	return nil
}

// Plant is the read-only projection of a plant record this core consumes.
type Plant struct {
	ID                    string `json:"id"`
	Name                  string `json:"name,omitempty"`
	WateringFrequencyDays int    `json:"watering_frequency_days"`
	// LastWateredDate is optional; empty means unknown.
	LastWateredDate string `json:"last_watered_date,omitempty"`
}

// AutoWatering reports whether the plant takes part in the fleet sweep.
func (p Plant) AutoWatering() bool { return p.WateringFrequencyDays > 0 }

// DisplayName falls back to the ID when the plant has no name.
func (p Plant) DisplayName() string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return p.ID
}

// TaskFilter selects tasks in FindTasks. Zero fields match everything.
// DueFrom/DueTo are inclusive and compare normalized due days; tasks with an
// unreadable due date never match a range.
type TaskFilter struct {
	PlantID   string
	Type      TaskType
	Completed *bool
	DueFrom   *calendar.DayKey
	DueTo     *calendar.DayKey
}

// DueOn narrows the filter to a single day.
func (f TaskFilter) DueOn(day calendar.DayKey) TaskFilter {
	f.DueFrom = &day
	f.DueTo = &day
	return f
}

// Bool returns a pointer to b, for TaskFilter.Completed.
func Bool(b bool) *bool { return &b }

// Matches applies the filter to t. dueDay is t's normalized due day and ok
// reports whether it could be read.
func (f TaskFilter) Matches(t Task, dueDay calendar.DayKey, ok bool) bool {
	if f.PlantID != "" && t.PlantID != f.PlantID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if !ok {
			return false
		}
		if f.DueFrom != nil && dueDay.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && dueDay.After(*f.DueTo) {
			return false
		}
	}
	return true
}
