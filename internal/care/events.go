package care

import "time"

// Event types published on the event bus.
const (
	EventTaskCreated   = "task.created"
	EventTaskCompleted = "task.completed"
	EventTaskDeleted   = "task.deleted"
	EventSweepFinished = "sweep.finished"
)

// TaskCompleted is emitted once per completion for external subscribers
// (badges, notifications). This core never reacts to it itself.
type TaskCompleted struct {
	TaskID  string    `json:"task_id"`
	PlantID string    `json:"plant_id"`
	Type    TaskType  `json:"type"`
	At      time.Time `json:"at"`
}
