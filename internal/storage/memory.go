package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
)

// memStore keeps tasks in creation order and plants by ID.
type memStore struct {
	norm calendar.Normalizer
	now  func() time.Time

	mu     sync.RWMutex
	closed bool
	tasks  map[string]care.Task
	order  []string
	plants map[string]care.Plant
}

// NewMemory returns an empty in-process store.
func NewMemory(norm calendar.Normalizer) Store { return newMemStore(norm) }

func newMemStore(norm calendar.Normalizer) *memStore {
	return &memStore{
		norm:   norm,
		now:    time.Now,
		tasks:  map[string]care.Task{},
		plants: map[string]care.Plant{},
	}
}

func newTaskID() string { return uuid.Must(uuid.NewV7()).String() }

func newTask(d care.TaskDraft, now time.Time) care.Task {
	return care.Task{
		ID:          newTaskID(),
		PlantID:     strings.TrimSpace(d.PlantID),
		Type:        d.Type,
		Description: d.Description,
		DueDate:     strings.TrimSpace(d.DueDate),
		CreatedAt:   now.UTC(),
	}
}

func (s *memStore) CreateTask(_ context.Context, d care.TaskDraft) (care.Task, error) {
	t := newTask(d, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return care.Task{}, ErrClosed
	}
	s.putTaskLocked(t)
	return t, nil
}

func (s *memStore) CreateTaskUnless(_ context.Context, guard care.TaskFilter, d care.TaskDraft) (care.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return care.Task{}, false, ErrClosed
	}
	if t, ok := s.firstMatchLocked(guard); ok {
		return t, false, nil
	}
	t := newTask(d, s.now())
	s.putTaskLocked(t)
	return t, true, nil
}

func (s *memStore) FindTasks(_ context.Context, f care.TaskFilter) ([]care.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]care.Task, 0)
	for _, id := range s.order {
		if t := s.tasks[id]; s.matches(f, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) matches(f care.TaskFilter, t care.Task) bool {
	k, err := s.norm.Normalize(t.DueDate)
	return f.Matches(t, k, err == nil)
}

func (s *memStore) firstMatchLocked(f care.TaskFilter) (care.Task, bool) {
	for _, id := range s.order {
		if t := s.tasks[id]; s.matches(f, t) {
			return t, true
		}
	}
	return care.Task{}, false
}

func (s *memStore) CompleteTask(_ context.Context, id string) (care.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return care.Task{}, false, ErrClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		return care.Task{}, false, care.TaskNotFound(id)
	}
	if t.Completed {
		return t, false, nil
	}
	at := s.now().UTC()
	t.Completed = true
	t.CompletedAt = &at
	s.tasks[id] = t
	return t, true, nil
}

func (s *memStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.tasks[id]; !ok {
		return care.TaskNotFound(id)
	}
	s.deleteTaskLocked(id)
	return nil
}

func (s *memStore) GetPlant(_ context.Context, id string) (care.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return care.Plant{}, ErrClosed
	}
	p, ok := s.plants[id]
	if !ok {
		return care.Plant{}, care.PlantNotFound(id)
	}
	return p, nil
}

func (s *memStore) ListPlantsWithAutoWatering(ctx context.Context) ([]care.Plant, error) {
	all, err := s.ListPlants(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.AutoWatering() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) ListPlants(_ context.Context) ([]care.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]care.Plant, 0, len(s.plants))
	for _, p := range s.plants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) PutPlant(_ context.Context, p care.Plant) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return errEmptyPlantID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.plants[p.ID] = p
	return nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// putTaskLocked inserts or replaces t, keeping first-insert order.
func (s *memStore) putTaskLocked(t care.Task) {
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
}

func (s *memStore) deleteTaskLocked(id string) {
	delete(s.tasks, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
