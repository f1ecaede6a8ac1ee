package recurrence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	"plantcare/internal/storage"
)

var fixedNow = time.Date(2025, time.April, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newFixture(t *testing.T, loc *time.Location) (*Generator, storage.Store) {
	t.Helper()
	norm := calendar.New(loc)
	st := storage.NewMemory(norm)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, st, norm, WithClock(clock)), st
}

func TestExpandSpacing(t *testing.T) {
	t.Parallel()
	g, _ := newFixture(t, time.UTC)

	drafts, err := g.Expand(care.Task{PlantID: "p1", Type: care.TaskWater, DueDate: "2025-04-01"}, 7)
	require.NoError(t, err)
	require.Len(t, drafts, RecurrenceCount)

	want := []string{"2025-04-08", "2025-04-15", "2025-04-22"}
	for i, d := range drafts {
		require.Equal(t, want[i], d.DueDate)
		require.Equal(t, "p1", d.PlantID)
		require.Equal(t, care.TaskWater, d.Type)
		require.Equal(t, "Water (repeats every 7 days)", d.Description)
	}
}

func TestExpandAcrossMonthAndYear(t *testing.T) {
	t.Parallel()
	g, _ := newFixture(t, time.UTC)

	drafts, err := g.Expand(care.Task{PlantID: "p1", DueDate: "2024-12-20"}, 10)
	require.NoError(t, err)
	require.Equal(t, "2024-12-30", drafts[0].DueDate)
	require.Equal(t, "2025-01-09", drafts[1].DueDate)
	require.Equal(t, "2025-01-19", drafts[2].DueDate)
}

func TestExpandTimestampKeepsWallClock(t *testing.T) {
	t.Parallel()
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	g, _ := newFixture(t, berlin)

	// 2025-03-28 09:00 CET; the series crosses the DST switch on 03-30.
	drafts, err := g.Expand(care.Task{PlantID: "p1", DueDate: "2025-03-28T08:00:00Z"}, 2)
	require.NoError(t, err)
	require.Equal(t, "2025-03-30T09:00:00+02:00", drafts[0].DueDate)
	require.Equal(t, "2025-04-01T09:00:00+02:00", drafts[1].DueDate)
	require.Equal(t, "2025-04-03T09:00:00+02:00", drafts[2].DueDate)
}

func TestExpandRejects(t *testing.T) {
	t.Parallel()
	g, _ := newFixture(t, time.UTC)

	_, err := g.Expand(care.Task{DueDate: "2025-04-01"}, 0)
	require.ErrorIs(t, err, ErrInvalidFrequency)
	_, err = g.Expand(care.Task{DueDate: "2025-04-01"}, -3)
	require.ErrorIs(t, err, ErrInvalidFrequency)

	_, err = g.Expand(care.Task{DueDate: "someday"}, 3)
	require.ErrorIs(t, err, calendar.ErrInvalidDate)
}

func TestExpandAndCreate(t *testing.T) {
	t.Parallel()
	g, st := newFixture(t, time.UTC)
	ctx := context.Background()

	created, err := g.ExpandAndCreate(ctx, care.Task{ID: "t0", PlantID: "p1", DueDate: "2025-04-06"}, 5)
	require.NoError(t, err)
	require.Len(t, created, 3)

	all, err := st.FindTasks(ctx, care.TaskFilter{PlantID: "p1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "2025-04-11", all[0].DueDate)
	require.Equal(t, "2025-04-16", all[1].DueDate)
	require.Equal(t, "2025-04-21", all[2].DueDate)
}

func TestKeyLocksReleaseEntries(t *testing.T) {
	t.Parallel()
	k := newKeyLocks()

	unlock := k.lock("p1")
	require.Equal(t, 1, k.size())

	acquired := make(chan struct{})
	go func() {
		u := k.lock("p1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	unlock()
	<-acquired

	require.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}

func TestKeyLocksIndependentKeys(t *testing.T) {
	t.Parallel()
	k := newKeyLocks()
	a := k.lock("a")
	defer a()

	done := make(chan struct{})
	go func() {
		b := k.lock("b")
		b()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on b blocked behind a")
	}
}

func TestConcurrentExpandSerializesPerPlant(t *testing.T) {
	t.Parallel()
	g, st := newFixture(t, time.UTC)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.ExpandAndCreate(ctx, care.Task{PlantID: "p1", DueDate: "2025-04-01"}, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := st.FindTasks(ctx, care.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4*RecurrenceCount)
}

func TestPlantFailureUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := (&Summary{Failures: []PlantFailure{{PlantID: "p1", Err: cause}}}).Err()

	var partial *PartialSweepError
	require.ErrorAs(t, err, &partial)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "plant p1: boom")
}
