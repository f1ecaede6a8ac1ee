// Package scheduler triggers recurring jobs (the auto-watering sweep) on cron
// or interval schedules in a configurable timezone.
//
// Schedules are upserted by name and survive Stop/Start and timezone changes.
// A job still running when its next tick fires is skipped for that tick.
package scheduler
