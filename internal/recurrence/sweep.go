package recurrence

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	logx "plantcare/pkg/logx"
)

// Summary describes one fleet sweep. It lives only as long as the caller keeps it.
type Summary struct {
	TriggeredAt      time.Time      `json:"triggered_at"`
	Took             time.Duration  `json:"took"`
	PlantIDs         []string       `json:"plant_ids"`
	PlantsConsidered int            `json:"plants_considered"`
	TasksCreated     int            `json:"tasks_created"`
	PlantsSkipped    int            `json:"plants_skipped"`
	PlantsFailed     int            `json:"plants_failed"`
	Created          []care.Task    `json:"created,omitempty"`
	Failures         []PlantFailure `json:"failures,omitempty"`
}

// Err returns a *PartialSweepError when any plant failed, nil otherwise.
func (s Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	return &PartialSweepError{Failures: append([]PlantFailure(nil), s.Failures...)}
}

// String is the short user-facing report, e.g. "3 created, 1 failed".
func (s Summary) String() string {
	return fmt.Sprintf("%d created, %d failed", s.TasksCreated, s.PlantsFailed)
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeSkipped
	outcomeFailed
)

type plantResult struct {
	outcome outcome
	task    care.Task
	err     error
}

// Sweep creates at most one pending watering task per auto-watering plant.
//
// For each plant the next due day is (reference day + frequency), where the
// reference is the latest completed watering task, else the plant's
// LastWateredDate, else today. A plant that already has a pending watering
// task on that day is skipped, which makes repeated sweeps safe. A plant with
// no watering history is skipped while it has any pending watering task.
//
// Only a failure to list plants fails the sweep as a whole. Per-plant errors
// are recorded in the summary and never stop the other plants.
func (g *Generator) Sweep(ctx context.Context) (Summary, error) {
	start := g.now()
	sum := Summary{TriggeredAt: start}

	plants, err := g.plants.ListPlantsWithAutoWatering(ctx)
	if err != nil {
		return sum, fmt.Errorf("list plants: %w", err)
	}

	ids := make([]string, 0, len(plants))
	for _, p := range plants {
		ids = append(ids, p.ID)
	}
	sum.PlantIDs = ids
	sum.PlantsConsidered = len(ids)

	results := make([]plantResult, len(ids))
	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, id := range ids {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = plantResult{outcome: outcomeFailed, err: err}
				return nil
			}
			results[i] = g.sweepPlant(ctx, id)
			return nil
		})
	}
	_ = eg.Wait()

	for i, r := range results {
		switch r.outcome {
		case outcomeCreated:
			sum.TasksCreated++
			sum.Created = append(sum.Created, r.task)
		case outcomeSkipped:
			sum.PlantsSkipped++
		case outcomeFailed:
			sum.PlantsFailed++
			sum.Failures = append(sum.Failures, newPlantFailure(ids[i], r.err))
		}
	}
	sum.Took = g.now().Sub(start)

	fields := []logx.Field{
		logx.Int("considered", sum.PlantsConsidered),
		logx.Int("created", sum.TasksCreated),
		logx.Int("skipped", sum.PlantsSkipped),
		logx.Int("failed", sum.PlantsFailed),
		logx.Duration("took", sum.Took),
	}
	if sum.PlantsFailed > 0 {
		g.log.Warn("sweep finished with failures", append(fields, logx.Err(sum.Err()))...)
	} else {
		g.log.Info("sweep finished", fields...)
	}
	return sum, nil
}

// sweepPlant runs the check-then-create step for one plant. The keyed lock
// serializes this process; CreateTaskUnless makes the step atomic in the store,
// which covers other processes sharing a durable store.
func (g *Generator) sweepPlant(ctx context.Context, id string) plantResult {
	unlock := g.locks.lock(id)
	defer unlock()

	log := g.log.With(logx.String("plant", id))

	p, err := g.plants.GetPlant(ctx, id)
	if err != nil {
		log.Warn("plant lookup failed", logx.Err(err))
		return plantResult{outcome: outcomeFailed, err: fmt.Errorf("get plant: %w", err)}
	}
	if !p.AutoWatering() {
		// Frequency was cleared between listing and now.
		log.Debug("plant no longer auto-watered")
		return plantResult{outcome: outcomeSkipped}
	}

	ref, anchored, err := g.referenceDay(ctx, p)
	if err != nil {
		log.Warn("reference day unavailable", logx.Err(err))
		return plantResult{outcome: outcomeFailed, err: err}
	}
	next := ref.AddDays(p.WateringFrequencyDays)

	// With a recorded watering the next day is fixed, so only a pending task on
	// that day counts as a duplicate. Without one the day moves with the clock,
	// so any pending watering task means the plant is already scheduled.
	guard := care.TaskFilter{PlantID: p.ID, Type: care.TaskWater, Completed: care.Bool(false)}
	if anchored {
		guard = guard.DueOn(next)
	}

	t, created, err := g.tasks.CreateTaskUnless(ctx, guard, care.TaskDraft{
		PlantID:     p.ID,
		Type:        care.TaskWater,
		Description: fmt.Sprintf("Water %s", p.DisplayName()),
		DueDate:     next.String(),
	})
	if err != nil {
		log.Warn("task create failed", logx.Err(err))
		return plantResult{outcome: outcomeFailed, err: fmt.Errorf("create task: %w", err)}
	}
	if !created {
		log.Debug("sweep skipped plant",
			logx.String("due", next.String()),
			logx.String("pending", t.DueDate),
			logx.Err(ErrDuplicateSkipped),
		)
		return plantResult{outcome: outcomeSkipped, err: ErrDuplicateSkipped}
	}
	log.Debug("watering task created", logx.String("task", t.ID), logx.String("due", next.String()))
	return plantResult{outcome: outcomeCreated, task: t}
}

// referenceDay picks the day the next interval counts from. anchored is false
// when neither a completed watering nor LastWateredDate exists and today is
// used instead.
//
// Only completed waterings count. A pending task created by an earlier sweep
// must not move the reference, or every re-run would schedule one more task.
func (g *Generator) referenceDay(ctx context.Context, p care.Plant) (day calendar.DayKey, anchored bool, err error) {
	done, err := g.tasks.FindTasks(ctx, care.TaskFilter{PlantID: p.ID, Type: care.TaskWater, Completed: care.Bool(true)})
	if err != nil {
		return calendar.DayKey{}, false, fmt.Errorf("find completed: %w", err)
	}
	var (
		latest calendar.DayKey
		found  bool
	)
	for _, t := range done {
		k, err := g.norm.Normalize(t.DueDate)
		if err != nil {
			continue
		}
		if !found || k.After(latest) {
			latest, found = k, true
		}
	}
	if found {
		return latest, true, nil
	}

	if p.LastWateredDate != "" {
		k, err := g.norm.Normalize(p.LastWateredDate)
		if err != nil {
			return calendar.DayKey{}, false, fmt.Errorf("last watered date: %w", err)
		}
		return k, true, nil
	}
	return g.norm.Today(g.now), false, nil
}
