// Package recurrence generates watering tasks.
//
// Two entry points share one policy:
//   - Expand / ExpandAndCreate turn one watering task into RecurrenceCount
//     future tasks spaced by the plant's frequency.
//   - Sweep walks every auto-watering plant and creates at most one pending
//     task per plant, skipping plants that already have one for the computed day.
//
// Check-then-create for a plant runs under a per-plant lock, so concurrent
// sweeps (and expansions) in one process cannot both create the same task.
package recurrence
