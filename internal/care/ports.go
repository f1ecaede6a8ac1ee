package care

import "context"

// PlantDirectory is the read-only plant source. Implementations return an
// error matching ErrNotFound when a plant does not exist.
type PlantDirectory interface {
	GetPlant(ctx context.Context, id string) (Plant, error)
	// ListPlantsWithAutoWatering returns plants with WateringFrequencyDays > 0.
	ListPlantsWithAutoWatering(ctx context.Context) ([]Plant, error)
}

// TaskStore persists tasks. Each CreateTask is a single atomic write.
type TaskStore interface {
	CreateTask(ctx context.Context, d TaskDraft) (Task, error)
	// CreateTaskUnless creates d only when no task matches guard, as one
	// atomic step. When a match exists it is returned with created false.
	// Durable stores make the step atomic across processes sharing the data.
	CreateTaskUnless(ctx context.Context, guard TaskFilter, d TaskDraft) (t Task, created bool, err error)
	FindTasks(ctx context.Context, f TaskFilter) ([]Task, error)
	// CompleteTask marks a task done. Completing twice is not an error;
	// changed is true only for the call that flipped the flag.
	CompleteTask(ctx context.Context, id string) (t Task, changed bool, err error)
	DeleteTask(ctx context.Context, id string) error
}
