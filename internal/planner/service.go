package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	"plantcare/internal/eventbus"
	"plantcare/internal/matcher"
	"plantcare/internal/recurrence"
	logx "plantcare/pkg/logx"
)

// Store is what the planner needs from persistence.
type Store interface {
	care.TaskStore
	care.PlantDirectory
}

// Service exposes the care-task operations to transports (HTTP, CLI).
type Service struct {
	store Store
	norm  calendar.Normalizer
	match matcher.Matcher
	gen   *recurrence.Generator
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time
}

// CreateResult is returned by CreateTaskWithRecurrence.
type CreateResult struct {
	Created     care.Task   `json:"created"`
	Recurrences []care.Task `json:"recurrences"`
}

// CompleteResult is returned by CompleteTask.
type CompleteResult struct {
	Completed   care.Task   `json:"completed"`
	Recurrences []care.Task `json:"recurrences"`
}

func New(store Store, norm calendar.Normalizer, gen *recurrence.Generator, bus eventbus.Bus, log logx.Logger) *Service {
	if bus == nil {
		bus = eventbus.Nop()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store: store,
		norm:  norm,
		match: matcher.New(norm),
		gen:   gen,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// Normalizer returns the reference-timezone normalizer the service uses.
func (s *Service) Normalizer() calendar.Normalizer { return s.norm }

// GetTasksForDay returns the tasks due on day, ordered by due instant.
// day may be a DayKey, a time.Time or a date string.
func (s *Service) GetTasksForDay(ctx context.Context, day any) ([]care.Task, error) {
	k, err := s.norm.Normalize(day)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.FindTasks(ctx, care.TaskFilter{}.DueOn(k))
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	return s.match.TasksDueOnSorted(k, tasks), nil
}

// GetDotForDay summarizes day for a calendar cell.
func (s *Service) GetDotForDay(ctx context.Context, day any) (matcher.DotState, error) {
	k, err := s.norm.Normalize(day)
	if err != nil {
		return matcher.DotNone, err
	}
	tasks, err := s.store.FindTasks(ctx, care.TaskFilter{}.DueOn(k))
	if err != nil {
		return matcher.DotNone, fmt.Errorf("find tasks: %w", err)
	}
	return s.match.DotForDay(k, tasks), nil
}

// GetDotsForMonth returns the dot of every day in the month that has tasks.
func (s *Service) GetDotsForMonth(ctx context.Context, year int, month time.Month) (map[calendar.DayKey]matcher.DotState, error) {
	if month < time.January || month > time.December {
		return nil, &calendar.InvalidDateError{Input: fmt.Sprintf("%04d-%02d", year, int(month)), Err: errors.New("month out of range")}
	}
	from := calendar.Date(year, month, 1)
	to := from.AddDays(daysInMonth(year, month) - 1)
	tasks, err := s.store.FindTasks(ctx, care.TaskFilter{DueFrom: &from, DueTo: &to})
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	return s.match.DotsForRange(from, to, tasks), nil
}

// CreateTaskWithRecurrence validates and stores d. When scheduleFuture is set
// on a water task for an auto-watered plant, the next RecurrenceCount
// waterings are created as well.
//
// If a recurrence write fails, the result still holds everything that was
// created alongside the error.
func (s *Service) CreateTaskWithRecurrence(ctx context.Context, d care.TaskDraft, scheduleFuture bool) (CreateResult, error) {
	if err := d.Validate(s.norm); err != nil {
		return CreateResult{}, err
	}
	p, err := s.store.GetPlant(ctx, d.PlantID)
	if err != nil {
		return CreateResult{}, err
	}

	t, err := s.store.CreateTask(ctx, d)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create task: %w", err)
	}
	res := CreateResult{Created: t, Recurrences: []care.Task{}}
	s.publish(care.EventTaskCreated, t)

	if !scheduleFuture || t.Type != care.TaskWater || !p.AutoWatering() {
		return res, nil
	}
	rec, err := s.gen.ExpandAndCreate(ctx, t, p.WateringFrequencyDays)
	res.Recurrences = append(res.Recurrences, rec...)
	for _, r := range rec {
		s.publish(care.EventTaskCreated, r)
	}
	return res, err
}

// CompleteTask marks id done and emits TaskCompleted. With scheduleFuture,
// completing a water task for an auto-watered plant creates its next
// waterings. Completing an already-done task changes nothing.
func (s *Service) CompleteTask(ctx context.Context, id string, scheduleFuture bool) (CompleteResult, error) {
	t, changed, err := s.store.CompleteTask(ctx, id)
	if err != nil {
		return CompleteResult{}, err
	}
	res := CompleteResult{Completed: t, Recurrences: []care.Task{}}
	if !changed {
		return res, nil
	}

	at := s.now()
	if t.CompletedAt != nil {
		at = *t.CompletedAt
	}
	s.bus.Publish(eventbus.Event{
		Type: care.EventTaskCompleted,
		Time: at,
		Data: care.TaskCompleted{TaskID: t.ID, PlantID: t.PlantID, Type: t.Type, At: at},
	})

	if !scheduleFuture || t.Type != care.TaskWater {
		return res, nil
	}
	p, err := s.store.GetPlant(ctx, t.PlantID)
	if err != nil {
		return res, fmt.Errorf("schedule future: %w", err)
	}
	if !p.AutoWatering() {
		return res, nil
	}
	rec, err := s.gen.ExpandAndCreate(ctx, t, p.WateringFrequencyDays)
	res.Recurrences = append(res.Recurrences, rec...)
	for _, r := range rec {
		s.publish(care.EventTaskCreated, r)
	}
	return res, err
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.bus.Publish(eventbus.Event{Type: care.EventTaskDeleted, Time: s.now(), Data: id})
	return nil
}

// RunAutoWateringSweep runs one fleet sweep. Per-plant failures are reported
// in the summary, not as the returned error.
func (s *Service) RunAutoWateringSweep(ctx context.Context) (recurrence.Summary, error) {
	sum, err := s.gen.Sweep(ctx)
	if err != nil {
		s.log.Error("auto-watering sweep failed", logx.Err(err))
		return sum, err
	}
	s.log.Info("auto-watering sweep: "+sum.String(), logx.Strings("plants", sum.PlantIDs))
	for _, t := range sum.Created {
		s.publish(care.EventTaskCreated, t)
	}
	s.bus.Publish(eventbus.Event{Type: care.EventSweepFinished, Time: s.now(), Data: sum})
	return sum, nil
}

func (s *Service) publish(typ string, t care.Task) {
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: t})
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
