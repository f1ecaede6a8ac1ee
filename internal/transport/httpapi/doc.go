// Package httpapi serves the planner over a small JSON API.
//
// Routes:
//
//	GET    /healthz
//	GET    /api/days/{day}/tasks
//	GET    /api/days/{day}/dot
//	GET    /api/months/{year}/{month}/dots
//	POST   /api/tasks?schedule_future=true
//	POST   /api/tasks/{id}/complete?schedule_future=true
//	DELETE /api/tasks/{id}
//	POST   /api/sweeps
//
// Every /api route requires the bearer token when one is configured.
package httpapi
