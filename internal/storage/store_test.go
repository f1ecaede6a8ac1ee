package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	logx "plantcare/pkg/logx"
)

func openDriver(t *testing.T, driver string, norm calendar.Normalizer, dir string) Store {
	t.Helper()
	var path string
	switch driver {
	case "file":
		path = filepath.Join(dir, "plantcare.json")
	case "sqlite":
		path = filepath.Join(dir, "plantcare.db")
	}
	st, err := Open(Config{Driver: driver, Path: path}, norm, logx.Nop())
	require.NoError(t, err)
	return st
}

var drivers = []string{"memory", "file", "sqlite"}

func TestStoreContract(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			norm := calendar.New(time.UTC)
			st := openDriver(t, driver, norm, t.TempDir())
			defer st.Close()

			a, err := st.CreateTask(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, DueDate: "2025-04-06"})
			require.NoError(t, err)
			require.NotEmpty(t, a.ID)
			require.False(t, a.Completed)

			b, err := st.CreateTask(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskFertilize, DueDate: "2025-04-06T22:30:00Z"})
			require.NoError(t, err)
			_, err = st.CreateTask(ctx, care.TaskDraft{PlantID: "p2", Type: care.TaskWater, DueDate: "not a date"})
			require.NoError(t, err)

			all, err := st.FindTasks(ctx, care.TaskFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			require.Equal(t, a.ID, all[0].ID)
			require.Equal(t, b.ID, all[1].ID)

			day, err := st.FindTasks(ctx, care.TaskFilter{}.DueOn(calendar.Date(2025, time.April, 6)))
			require.NoError(t, err)
			require.Len(t, day, 2)

			water, err := st.FindTasks(ctx, care.TaskFilter{PlantID: "p1", Type: care.TaskWater})
			require.NoError(t, err)
			require.Len(t, water, 1)
			require.Equal(t, "2025-04-06", water[0].DueDate)

			done, changed, err := st.CompleteTask(ctx, a.ID)
			require.NoError(t, err)
			require.True(t, changed)
			require.True(t, done.Completed)
			require.NotNil(t, done.CompletedAt)

			again, changed, err := st.CompleteTask(ctx, a.ID)
			require.NoError(t, err)
			require.False(t, changed)
			require.True(t, again.Completed)
			require.True(t, done.CompletedAt.Equal(*again.CompletedAt))

			pending, err := st.FindTasks(ctx, care.TaskFilter{Completed: care.Bool(false)})
			require.NoError(t, err)
			require.Len(t, pending, 2)

			require.NoError(t, st.DeleteTask(ctx, b.ID))
			err = st.DeleteTask(ctx, b.ID)
			require.ErrorIs(t, err, care.ErrNotFound)

			_, _, err = st.CompleteTask(ctx, "missing")
			require.ErrorIs(t, err, care.ErrNotFound)
		})
	}
}

func TestPlantDirectory(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openDriver(t, driver, calendar.New(time.UTC), t.TempDir())
			defer st.Close()

			require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "b", Name: "Basil", WateringFrequencyDays: 3}))
			require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "a", Name: "Aloe", WateringFrequencyDays: 14, LastWateredDate: "2025-04-01"}))
			require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "c", Name: "Cactus"}))
			require.Error(t, st.PutPlant(ctx, care.Plant{ID: "  "}))

			p, err := st.GetPlant(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "2025-04-01", p.LastWateredDate)

			_, err = st.GetPlant(ctx, "zzz")
			require.ErrorIs(t, err, care.ErrNotFound)

			auto, err := st.ListPlantsWithAutoWatering(ctx)
			require.NoError(t, err)
			require.Len(t, auto, 2)
			require.Equal(t, "a", auto[0].ID)
			require.Equal(t, "b", auto[1].ID)

			require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "b", Name: "Basil", WateringFrequencyDays: 0}))
			auto, err = st.ListPlantsWithAutoWatering(ctx)
			require.NoError(t, err)
			require.Len(t, auto, 1)

			all, err := st.ListPlants(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
		})
	}
}

func TestDurableDriversSurviveReopen(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			dir := t.TempDir()
			norm := calendar.New(time.UTC)

			st := openDriver(t, driver, norm, dir)
			a, err := st.CreateTask(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, DueDate: "2025-04-06"})
			require.NoError(t, err)
			b, err := st.CreateTask(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskRepot, DueDate: "2025-04-07"})
			require.NoError(t, err)
			_, _, err = st.CompleteTask(ctx, a.ID)
			require.NoError(t, err)
			require.NoError(t, st.DeleteTask(ctx, b.ID))
			require.NoError(t, st.PutPlant(ctx, care.Plant{ID: "p1", Name: "Fern", WateringFrequencyDays: 5}))
			require.NoError(t, st.Close())

			st = openDriver(t, driver, norm, dir)
			defer st.Close()
			all, err := st.FindTasks(ctx, care.TaskFilter{})
			require.NoError(t, err)
			require.Len(t, all, 1)
			require.Equal(t, a.ID, all[0].ID)
			require.True(t, all[0].Completed)

			p, err := st.GetPlant(ctx, "p1")
			require.NoError(t, err)
			require.Equal(t, 5, p.WateringFrequencyDays)
		})
	}
}

func TestSQLiteReindexesOnZoneChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	st := openDriver(t, "sqlite", calendar.New(time.UTC), dir)
	_, err := st.CreateTask(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, DueDate: "2025-04-06T23:30:00Z"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	st = openDriver(t, "sqlite", calendar.New(berlin), dir)
	defer st.Close()

	got, err := st.FindTasks(ctx, care.TaskFilter{}.DueOn(calendar.Date(2025, time.April, 7)))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFileJournalSkipsTornLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	norm := calendar.New(time.UTC)

	st := openDriver(t, "file", norm, dir)
	_, err := st.CreateTask(ctx, care.TaskDraft{PlantID: "p1", Type: care.TaskWater, DueDate: "2025-04-06"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	mem := newMemStore(norm)
	journal := filepath.Join(dir, "plantcare.journal.jsonl")
	require.NoError(t, appendRaw(journal, `{"op":"task","task":{"id":"x"`+"\n"))
	skipped, err := replayJournal(journal, mem)
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	require.Len(t, mem.order, 1)
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	st := NewMemory(calendar.New(time.UTC))
	require.NoError(t, st.Close())
	_, err := st.CreateTask(context.Background(), care.TaskDraft{PlantID: "p", Type: care.TaskWater, DueDate: "2025-01-01"})
	require.True(t, errors.Is(err, ErrClosed))
}

func TestUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "postgres"}, calendar.New(time.UTC), logx.Nop())
	require.Error(t, err)
	_, err = Open(Config{Driver: "file"}, calendar.New(time.UTC), logx.Nop())
	require.Error(t, err)
}

func appendRaw(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_, err = f.WriteString(line)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func TestCreateTaskUnless(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			dir := t.TempDir()
			norm := calendar.New(time.UTC)
			st := openDriver(t, driver, norm, dir)

			day := calendar.Date(2025, time.April, 6)
			guard := care.TaskFilter{PlantID: "p1", Type: care.TaskWater, Completed: care.Bool(false)}.DueOn(day)
			draft := care.TaskDraft{PlantID: "p1", Type: care.TaskWater, Description: "Water", DueDate: "2025-04-06"}

			first, created, err := st.CreateTaskUnless(ctx, guard, draft)
			require.NoError(t, err)
			require.True(t, created)

			again, created, err := st.CreateTaskUnless(ctx, guard, draft)
			require.NoError(t, err)
			require.False(t, created)
			require.Equal(t, first.ID, again.ID)

			// A completed match no longer blocks.
			_, _, err = st.CompleteTask(ctx, first.ID)
			require.NoError(t, err)
			_, created, err = st.CreateTaskUnless(ctx, guard, draft)
			require.NoError(t, err)
			require.True(t, created)
			require.NoError(t, st.Close())

			if driver == "memory" {
				return
			}
			st = openDriver(t, driver, norm, dir)
			defer st.Close()
			all, err := st.FindTasks(ctx, care.TaskFilter{PlantID: "p1"})
			require.NoError(t, err)
			require.Len(t, all, 2)
		})
	}
}

func TestSQLiteCreateTaskUnlessAcrossHandles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	norm := calendar.New(time.UTC)
	a := openDriver(t, "sqlite", norm, dir)
	defer a.Close()
	b := openDriver(t, "sqlite", norm, dir)
	defer b.Close()

	guard := care.TaskFilter{PlantID: "p1", Type: care.TaskWater, Completed: care.Bool(false)}
	draft := care.TaskDraft{PlantID: "p1", Type: care.TaskWater, DueDate: "2025-04-06"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range 10 {
		st := a
		if i%2 == 1 {
			st = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := st.CreateTaskUnless(ctx, guard, draft)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, created)
	all, err := b.FindTasks(ctx, guard)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFileStoreRefusesSecondOpen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	norm := calendar.New(time.UTC)
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "plantcare.json")}

	st, err := Open(cfg, norm, logx.Nop())
	require.NoError(t, err)

	_, err = Open(cfg, norm, logx.Nop())
	require.ErrorIs(t, err, ErrStoreLocked)

	require.NoError(t, st.Close())
	st, err = Open(cfg, norm, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}
