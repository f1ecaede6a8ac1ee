// Package planner is the single entry point transports use for care tasks.
//
// It ties the normalizer, matcher and recurrence generator to a store and
// publishes task lifecycle events on the event bus. Every mutating call
// returns the entities it touched; callers refresh their own views from that.
package planner
