// Package rewrite applies a single transformation candidate to a schedule.
package rewrite

import (
	"github.com/LyricZhao/DLMO/internal/trace"
)

// Apply produces the rewritten schedule for one candidate: the replica
// group (re_gen reversed, then the generator) is inserted just before the
// consuming task, and the original generator is elided when the candidate
// moves. Every emitted task is a shallow copy so analyzer scratch never
// leaks between schedules; the new schedule shares the Common and starts
// with its caches unset.
func Apply(s *trace.Schedule, occ *trace.Occupy) *trace.Schedule {
	tasks := make([]*trace.Task, 0, len(s.Tasks)+len(occ.ReGen)+1)
	for _, t := range s.Tasks {
		if t == occ.Use {
			for i := len(occ.ReGen) - 1; i >= 0; i-- {
				tasks = append(tasks, occ.ReGen[i].Copy())
			}
			tasks = append(tasks, occ.Gen.Copy())
		}
		if t == occ.Gen && occ.Move {
			continue
		}
		tasks = append(tasks, t.Copy())
	}
	return trace.NewSchedule(tasks, s.Common)
}
