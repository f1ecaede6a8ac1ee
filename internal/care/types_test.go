package care

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plantcare/internal/calendar"
)

func TestParseTaskType(t *testing.T) {
	t.Parallel()
	for _, tt := range TaskTypes {
		got, err := ParseTaskType(string(tt))
		require.NoError(t, err)
		require.Equal(t, tt, got)
	}
	got, err := ParseTaskType(" Water ")
	require.NoError(t, err)
	require.Equal(t, TaskWater, got)

	_, err = ParseTaskType("prune")
	require.ErrorIs(t, err, ErrInvalidTask)
}

func TestTaskTypePresentationIsTotal(t *testing.T) {
	t.Parallel()
	for _, tt := range TaskTypes {
		require.NotEmpty(t, tt.Icon(), tt)
		require.Equal(t, tt == TaskWater, tt.Urgent(), tt)
	}
	require.False(t, TaskType("prune").Valid())
}

func TestDraftValidate(t *testing.T) {
	t.Parallel()
	n := calendar.New(time.UTC)
	ok := TaskDraft{PlantID: "p1", Type: TaskWater, Description: "Water the fern", DueDate: "2025-04-01"}
	require.NoError(t, ok.Validate(n))

	tests := []struct {
		name   string
		mutate func(d *TaskDraft)
		target error
	}{
		{"missing plant", func(d *TaskDraft) { d.PlantID = " " }, ErrInvalidTask},
		{"bad type", func(d *TaskDraft) { d.Type = "prune" }, ErrInvalidTask},
		{"empty description", func(d *TaskDraft) { d.Description = "" }, ErrInvalidTask},
		{"bad date", func(d *TaskDraft) { d.DueDate = "someday" }, ErrInvalidDate},
		{"missing date", func(d *TaskDraft) { d.DueDate = "" }, ErrInvalidDate},
	}
	for _, tt := range tests {
		d := ok
		tt.mutate(&d)
		require.ErrorIs(t, d.Validate(n), tt.target, tt.name)
	}
}

func TestFilterMatches(t *testing.T) {
	t.Parallel()
	day := calendar.Date(2025, time.April, 6)
	task := Task{ID: "t1", PlantID: "p1", Type: TaskWater, DueDate: "2025-04-06"}

	require.True(t, TaskFilter{}.Matches(task, day, true))
	require.True(t, TaskFilter{PlantID: "p1", Type: TaskWater, Completed: Bool(false)}.Matches(task, day, true))
	require.False(t, TaskFilter{PlantID: "p2"}.Matches(task, day, true))
	require.False(t, TaskFilter{Type: TaskRepot}.Matches(task, day, true))
	require.False(t, TaskFilter{Completed: Bool(true)}.Matches(task, day, true))

	require.True(t, TaskFilter{}.DueOn(day).Matches(task, day, true))
	require.False(t, TaskFilter{}.DueOn(day.AddDays(1)).Matches(task, day, true))
	require.False(t, TaskFilter{}.DueOn(day).Matches(task, calendar.DayKey{}, false))
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()
	err := PlantNotFound("p9")
	require.True(t, errors.Is(err, ErrNotFound))
	require.EqualError(t, err, `plant "p9" not found`)
	var nf *NotFoundError
	require.ErrorAs(t, TaskNotFound("t1"), &nf)
	require.Equal(t, "task", nf.Kind)
}

func TestPlantHelpers(t *testing.T) {
	t.Parallel()
	require.True(t, Plant{WateringFrequencyDays: 3}.AutoWatering())
	require.False(t, Plant{}.AutoWatering())
	require.Equal(t, "p1", Plant{ID: "p1"}.DisplayName())
	require.Equal(t, "Fern", Plant{ID: "p1", Name: "Fern"}.DisplayName())
}
