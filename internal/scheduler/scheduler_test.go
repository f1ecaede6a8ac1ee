package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "plantcare/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "0 6 * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@daily", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "12h", kind: SpecInterval, source: "duration", duration: 12 * time.Hour},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "every:01:00", kind: SpecInterval, source: "hhmm", duration: time.Hour},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.kind, got.Kind)
			require.Equal(t, tt.source, got.Source)
			if tt.kind == SpecInterval {
				require.Equal(t, tt.duration, got.Every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "00:00", "1:75", "-5m", "cron:"} {
		_, err := ParseSchedule(raw)
		require.Error(t, err, raw)
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	require.NoError(t, err)
	require.Equal(t, 23, h)
	require.Equal(t, 15, m)

	for _, bad := range []string{"24:00", "12", "ab:cd", "10:60"} {
		_, _, err := parseHHMM(bad)
		require.Error(t, err, bad)
	}
}

func TestAddScheduleRejectsBadCron(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	_, err := s.AddSchedule("sweep", "61 * * * *", 0, func(context.Context) error { return nil })
	require.Error(t, err)
	_, err = s.AddSchedule("", "@daily", 0, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestUpsertByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	noop := func(context.Context) error { return nil }

	_, err := s.AddSchedule("sweep", "@daily", time.Minute, noop)
	require.NoError(t, err)
	_, err = s.AddSchedule("sweep", "6h", time.Minute, noop)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	require.Equal(t, "@every 6h0m0s", snap.Schedules[0].Spec)

	require.True(t, s.Remove("sweep"))
	require.False(t, s.Remove("sweep"))
	require.Empty(t, s.Snapshot().Schedules)
}

func TestTriggerSkipsOverlap(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	_, err := s.AddSchedule("sweep", "@daily", 0, func(ctx context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "sweep") }()
	<-started

	err = s.Trigger(context.Background(), "sweep")
	require.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), calls.Load())

	info := s.Snapshot().Schedules[0]
	require.Equal(t, uint64(1), info.Runs)
	require.Equal(t, uint64(1), info.Skipped)

	require.ErrorIs(t, s.Trigger(context.Background(), "missing"), ErrUnknownSchedule)
}

func TestTriggerAppliesTimeoutAndRecovers(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())

	_, err := s.AddSchedule("slow", "@daily", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	require.ErrorIs(t, s.Trigger(context.Background(), "slow"), context.DeadlineExceeded)

	_, err = s.AddSchedule("boom", "@daily", 0, func(context.Context) error { panic("kaput") })
	require.NoError(t, err)
	err = s.Trigger(context.Background(), "boom")
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaput")

	for _, it := range s.Snapshot().Schedules {
		require.Equal(t, uint64(1), it.Failed, it.Name)
		require.NotEmpty(t, it.LastErr)
	}
}

func TestIntervalFiresAfterStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())

	var calls atomic.Int32
	_, err := s.AddSchedule("tick", "interval:20ms", 0, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	s.Start(context.Background())
	require.True(t, s.Snapshot().Running)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 3*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	require.False(t, s.Snapshot().Running)
}

func TestStopCancelsRunningJob(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())

	started := make(chan struct{}, 1)
	var sawCancel atomic.Bool
	_, err := s.AddSchedule("long", "interval:10ms", 0, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		sawCancel.Store(errors.Is(ctx.Err(), context.Canceled))
		return ctx.Err()
	})
	require.NoError(t, err)
	s.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	require.True(t, sawCancel.Load())
}

func TestApplyTogglesAndKeepsSchedules(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false, Timezone: "UTC"}, logx.Nop())
	_, err := s.AddSchedule("sweep", "0 6 * * *", 0, func(context.Context) error { return nil })
	require.NoError(t, err)

	s.Start(context.Background())
	require.False(t, s.Snapshot().Running)

	s.Apply(Config{Enabled: true, Timezone: "Europe/Berlin"})
	snap := s.Snapshot()
	require.True(t, snap.Running)
	require.Equal(t, "Europe/Berlin", snap.Timezone)
	require.Len(t, snap.Schedules, 1)
	require.False(t, snap.Schedules[0].Next.IsZero())
	require.Equal(t, 6, snap.Schedules[0].Next.Hour())

	s.Apply(Config{Enabled: true, Timezone: "Asia/Tokyo"})
	require.Equal(t, "Asia/Tokyo", s.Snapshot().Timezone)

	s.Apply(Config{Enabled: false, Timezone: "Asia/Tokyo"})
	require.False(t, s.Snapshot().Running)
	require.Len(t, s.Snapshot().Schedules, 1)
}
