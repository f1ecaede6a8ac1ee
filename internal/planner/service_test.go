package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	"plantcare/internal/eventbus"
	"plantcare/internal/matcher"
	"plantcare/internal/recurrence"
	"plantcare/internal/storage"
	logx "plantcare/pkg/logx"
)

type fixture struct {
	svc   *Service
	store storage.Store
	bus   eventbus.Bus
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	norm := calendar.New(time.UTC)
	st := storage.NewMemory(norm)
	t.Cleanup(func() { _ = st.Close() })
	now := func() time.Time { return time.Date(2025, time.April, 10, 8, 0, 0, 0, time.UTC) }
	gen := recurrence.New(st, st, norm, recurrence.WithClock(now))
	bus := eventbus.New()
	svc := New(st, norm, gen, bus, logx.Nop())
	svc.now = now

	ctx := context.Background()
	require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "p1", Name: "Fern", WateringFrequencyDays: 5, LastWateredDate: "2025-04-01"}))
	require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "p2", Name: "Cactus"}))
	return fixture{svc: svc, store: st, bus: bus}
}

func TestGetTasksForDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []care.TaskDraft{
		{PlantID: "p1", Type: care.TaskWater, Description: "evening", DueDate: "2025-04-25T19:00:00Z"},
		{PlantID: "p1", Type: care.TaskFertilize, Description: "morning", DueDate: "2025-04-25T06:00:00Z"},
		{PlantID: "p2", Type: care.TaskRepot, Description: "whole day", DueDate: "2025-04-25"},
		{PlantID: "p2", Type: care.TaskLight, Description: "next day", DueDate: "2025-04-26"},
	} {
		_, err := f.svc.CreateTaskWithRecurrence(ctx, d, false)
		require.NoError(t, err)
	}

	got, err := f.svc.GetTasksForDay(ctx, "2025-04-25")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "whole day", got[0].Description)
	require.Equal(t, "morning", got[1].Description)
	require.Equal(t, "evening", got[2].Description)

	same, err := f.svc.GetTasksForDay(ctx, calendar.Date(2025, time.April, 25))
	require.NoError(t, err)
	require.Len(t, same, 3)

	_, err = f.svc.GetTasksForDay(ctx, "April 25th")
	require.ErrorIs(t, err, care.ErrInvalidDate)
}

func TestDots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	water, err := f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, Description: "w", DueDate: "2025-04-12"}, false)
	require.NoError(t, err)
	_, err = f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p2", Type: care.TaskRepot, Description: "r", DueDate: "2025-04-14"}, false)
	require.NoError(t, err)

	dot, err := f.svc.GetDotForDay(ctx, "2025-04-12")
	require.NoError(t, err)
	require.Equal(t, matcher.DotUrgent, dot)

	dot, err = f.svc.GetDotForDay(ctx, "2025-04-14")
	require.NoError(t, err)
	require.Equal(t, matcher.DotNormal, dot)

	dot, err = f.svc.GetDotForDay(ctx, "2025-04-13")
	require.NoError(t, err)
	require.Equal(t, matcher.DotNone, dot)

	_, err = f.svc.CompleteTask(ctx, water.Created.ID, false)
	require.NoError(t, err)
	dot, err = f.svc.GetDotForDay(ctx, "2025-04-12")
	require.NoError(t, err)
	require.Equal(t, matcher.DotNormal, dot)

	month, err := f.svc.GetDotsForMonth(ctx, 2025, time.April)
	require.NoError(t, err)
	require.Len(t, month, 2)
	require.Equal(t, matcher.DotNormal, month[calendar.Date(2025, time.April, 14)])

	_, err = f.svc.GetDotsForMonth(ctx, 2025, 13)
	require.ErrorIs(t, err, care.ErrInvalidDate)
}

func TestCreateTaskWithRecurrence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, Description: "Water", DueDate: "2025-04-06"}, true)
	require.NoError(t, err)
	require.Equal(t, "2025-04-06", res.Created.DueDate)
	require.Len(t, res.Recurrences, 3)
	require.Equal(t, "2025-04-11", res.Recurrences[0].DueDate)
	require.Equal(t, "2025-04-21", res.Recurrences[2].DueDate)

	// No frequency, no recurrences.
	res, err = f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p2", Type: care.TaskWater, Description: "Water", DueDate: "2025-04-06"}, true)
	require.NoError(t, err)
	require.Empty(t, res.Recurrences)

	// Only water tasks recur.
	res, err = f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskFertilize, Description: "Feed", DueDate: "2025-04-06"}, true)
	require.NoError(t, err)
	require.Empty(t, res.Recurrences)
}

func TestCreateTaskRejectsAtBoundary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, Description: "x", DueDate: "31/04/2025"}, false)
	require.ErrorIs(t, err, care.ErrInvalidDate)

	_, err = f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p1", Type: "prune", Description: "x", DueDate: "2025-04-06"}, false)
	require.ErrorIs(t, err, care.ErrInvalidTask)

	_, err = f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "ghost", Type: care.TaskWater, Description: "x", DueDate: "2025-04-06"}, false)
	require.ErrorIs(t, err, care.ErrNotFound)

	all, err := f.store.FindTasks(ctx, care.TaskFilter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCompleteTaskPublishesOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	events, unsubscribe := f.bus.Subscribe(8, care.EventTaskCompleted)
	defer unsubscribe()

	res, err := f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, Description: "Water", DueDate: "2025-04-06"}, false)
	require.NoError(t, err)

	done, err := f.svc.CompleteTask(ctx, res.Created.ID, true)
	require.NoError(t, err)
	require.True(t, done.Completed.Completed)
	require.Len(t, done.Recurrences, 3)

	select {
	case ev := <-events:
		tc, ok := ev.Data.(care.TaskCompleted)
		require.True(t, ok)
		require.Equal(t, res.Created.ID, tc.TaskID)
		require.Equal(t, "p1", tc.PlantID)
	case <-time.After(time.Second):
		t.Fatalf("no TaskCompleted event")
	}

	again, err := f.svc.CompleteTask(ctx, res.Created.ID, true)
	require.NoError(t, err)
	require.Empty(t, again.Recurrences)
	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}

	_, err = f.svc.CompleteTask(ctx, "missing", false)
	require.ErrorIs(t, err, care.ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateTaskWithRecurrence(ctx, care.TaskDraft{PlantID: "p2", Type: care.TaskOther, Description: "Dust", DueDate: "2025-04-06"}, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTask(ctx, res.Created.ID))
	require.ErrorIs(t, f.svc.DeleteTask(ctx, res.Created.ID), care.ErrNotFound)
}

func TestRunAutoWateringSweep(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	events, unsubscribe := f.bus.Subscribe(8, care.EventSweepFinished)
	defer unsubscribe()

	sum, err := f.svc.RunAutoWateringSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.TasksCreated)
	require.Equal(t, "2025-04-06", sum.Created[0].DueDate)

	ev := <-events
	_, ok := ev.Data.(recurrence.Summary)
	require.True(t, ok)

	sum, err = f.svc.RunAutoWateringSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, "0 created, 0 failed", sum.String())
}
