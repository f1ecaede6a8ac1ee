package recurrence

import (
	"context"
	"fmt"
	"time"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	logx "plantcare/pkg/logx"
)

// RecurrenceCount is how many future waterings one trigger expands into.
const RecurrenceCount = 3

const defaultWorkers = 4

// Generator creates watering tasks, either from one trigger task or for the
// whole fleet. Methods are safe for concurrent use.
type Generator struct {
	plants care.PlantDirectory
	tasks  care.TaskStore
	norm   calendar.Normalizer

	log     logx.Logger
	workers int
	now     func() time.Time

	locks *keyLocks
}

type Option func(*Generator)

func WithLogger(log logx.Logger) Option { return func(g *Generator) { g.log = log } }

// WithWorkers bounds how many plants a sweep processes at once.
func WithWorkers(n int) Option { return func(g *Generator) { g.workers = n } }

// WithClock overrides time.Now (used for "today" and batch timestamps).
func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

func New(plants care.PlantDirectory, tasks care.TaskStore, norm calendar.Normalizer, opts ...Option) *Generator {
	g := &Generator{
		plants:  plants,
		tasks:   tasks,
		norm:    norm,
		workers: defaultWorkers,
		now:     time.Now,
		locks:   newKeyLocks(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.log.IsZero() {
		g.log = logx.Nop()
	}
	if g.workers <= 0 {
		g.workers = defaultWorkers
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Expand computes RecurrenceCount watering drafts spaced frequencyDays apart,
// starting one interval after the trigger's due day. It has no side effects
// and is not idempotent: the caller decides how often to call it.
//
// A date-only trigger yields date-only due dates. A timestamp trigger keeps
// its wall-clock time in the reference timezone.
func (g *Generator) Expand(trigger care.Task, frequencyDays int) ([]care.TaskDraft, error) {
	if frequencyDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFrequency, frequencyDays)
	}

	step, err := g.stepper(trigger.DueDate)
	if err != nil {
		return nil, err
	}

	out := make([]care.TaskDraft, 0, RecurrenceCount)
	for k := 1; k <= RecurrenceCount; k++ {
		out = append(out, care.TaskDraft{
			PlantID:     trigger.PlantID,
			Type:        care.TaskWater,
			Description: fmt.Sprintf("Water (repeats every %d days)", frequencyDays),
			DueDate:     step(k * frequencyDays),
		})
	}
	return out, nil
}

// stepper returns a func rendering the trigger date shifted by n days.
func (g *Generator) stepper(due string) (func(n int) string, error) {
	if calendar.IsDateOnly(due) {
		day, err := calendar.ParseDay(due)
		if err != nil {
			return nil, err
		}
		return func(n int) string { return day.AddDays(n).String() }, nil
	}
	t, err := g.norm.ParseTime(due)
	if err != nil {
		return nil, err
	}
	local := t.In(g.norm.Location())
	return func(n int) string { return local.AddDate(0, 0, n).Format(time.RFC3339) }, nil
}

// ExpandAndCreate runs Expand and writes each draft. The plant is locked for
// the duration so a concurrent sweep cannot interleave with it. On a write
// failure the tasks created so far are returned along with the error.
func (g *Generator) ExpandAndCreate(ctx context.Context, trigger care.Task, frequencyDays int) ([]care.Task, error) {
	drafts, err := g.Expand(trigger, frequencyDays)
	if err != nil {
		return nil, err
	}

	unlock := g.locks.lock(trigger.PlantID)
	defer unlock()

	created := make([]care.Task, 0, len(drafts))
	for _, d := range drafts {
		t, err := g.tasks.CreateTask(ctx, d)
		if err != nil {
			return created, fmt.Errorf("create recurrence %s: %w", d.DueDate, err)
		}
		created = append(created, t)
	}
	g.log.Debug("recurrences created",
		logx.String("plant", trigger.PlantID),
		logx.String("trigger", trigger.ID),
		logx.Int("count", len(created)),
		logx.Int("every_days", frequencyDays),
	)
	return created, nil
}
