package scheduler

import "time"

// Snapshot reports registered schedules and their run counters.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	enabled := s.cfg.Enabled
	defs := make([]scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	loc := s.loc
	s.mu.Unlock()

	if loc == nil {
		loc = time.Local
	}

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{
			Name:    d.name,
			Spec:    d.spec,
			Timeout: d.timeout,
			Running: d.run.running.Load(),
			Runs:    d.run.runs.Load(),
			Skipped: d.run.skipped.Load(),
			Failed:  d.run.failed.Load(),
		}
		d.run.mu.Lock()
		it.LastErr = d.run.lastErr
		it.LastRun = d.run.lastAt
		it.LastTook = d.run.lastDur
		d.run.mu.Unlock()
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}

	return Snapshot{
		Enabled:   enabled,
		Running:   c != nil,
		Timezone:  loc.String(),
		Schedules: items,
	}
}
