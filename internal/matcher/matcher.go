// Package matcher selects the tasks that fall on a calendar day.
//
// All comparisons are structural DayKey equality after normalization; a task
// whose due date cannot be read is left out of every day rather than failing
// the whole query.
package matcher

import (
	"sort"
	"time"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
)

// DotState summarizes a calendar cell.
type DotState int

const (
	DotNone DotState = iota
	DotNormal
	DotUrgent
)

func (d DotState) String() string {
	switch d {
	case DotNone:
		return "none"
	case DotNormal:
		return "normal"
	case DotUrgent:
		return "urgent"
	}
	return "unknown"
}

func (d DotState) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Matcher is a pure view over a Normalizer. The zero value matches in UTC.
type Matcher struct {
	norm calendar.Normalizer
}

func New(norm calendar.Normalizer) Matcher { return Matcher{norm: norm} }

// DueDay reads t's due day. ok is false when the date is missing or unparsable.
func (m Matcher) DueDay(t care.Task) (calendar.DayKey, bool) {
	k, err := m.norm.Normalize(t.DueDate)
	if err != nil {
		return calendar.DayKey{}, false
	}
	return k, true
}

// TasksDueOn returns the tasks whose due day equals day, in input order.
func (m Matcher) TasksDueOn(day calendar.DayKey, tasks []care.Task) []care.Task {
	out := make([]care.Task, 0, len(tasks))
	for _, t := range tasks {
		if k, ok := m.DueDay(t); ok && k == day {
			out = append(out, t)
		}
	}
	return out
}

// TasksDueOnSorted is TasksDueOn ordered by due instant. Date-only values sort
// as the start of their day; ties keep input order.
func (m Matcher) TasksDueOnSorted(day calendar.DayKey, tasks []care.Task) []care.Task {
	type timed struct {
		task care.Task
		at   time.Time
	}
	due := m.TasksDueOn(day, tasks)
	rows := make([]timed, 0, len(due))
	for _, t := range due {
		ts, err := m.norm.ParseTime(t.DueDate)
		if err != nil {
			ts = day.Time(m.norm.Location())
		}
		rows = append(rows, timed{task: t, at: ts})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })

	out := make([]care.Task, len(rows))
	for i, r := range rows {
		out[i] = r.task
	}
	return out
}

// DotForDay is urgent iff an unfinished urgent-type (water) task falls on day,
// normal if any other task does, none otherwise.
func (m Matcher) DotForDay(day calendar.DayKey, tasks []care.Task) DotState {
	return dotOf(m.TasksDueOn(day, tasks))
}

// DotsForRange computes DotForDay for every day in [from, to] in one pass.
// Days without tasks are omitted.
func (m Matcher) DotsForRange(from, to calendar.DayKey, tasks []care.Task) map[calendar.DayKey]DotState {
	out := map[calendar.DayKey]DotState{}
	if to.Before(from) {
		return out
	}
	for _, t := range tasks {
		k, ok := m.DueDay(t)
		if !ok || k.Before(from) || k.After(to) {
			continue
		}
		if st := dotOf([]care.Task{t}); st > out[k] {
			out[k] = st
		}
	}
	return out
}

func dotOf(tasks []care.Task) DotState {
	st := DotNone
	for _, t := range tasks {
		if !t.Completed && t.Type.Urgent() {
			return DotUrgent
		}
		st = DotNormal
	}
	return st
}
