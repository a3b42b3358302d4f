// Package analysis implements the pure passes over a schedule: topology
// reconstruction with generation versioning, time and memory simulation,
// and transformation-candidate enumeration.
//
// Every pass first clears the scratch it owns, so analysis is idempotent
// and may be re-run on a schedule at any time. Scratch lives on the tasks
// and usages of the analyzed schedule only; the shared operand table is
// never written.
package analysis

import (
	"github.com/LyricZhao/DLMO/internal/trace"
)

// Analyze fills the schedule's statistics caches (peak memory, total time,
// per-task residency scratch). Returns an error when the schedule fails the
// liveness simulation; schedules produced by the rewriter always pass.
func Analyze(s *trace.Schedule) error {
	if s.Analyzed {
		return nil
	}
	buildTopology(s)
	s.TotalTime = totalTime(s)
	peak, err := simulateMemory(s)
	if err != nil {
		return err
	}
	s.PeakMemory = peak
	s.Analyzed = true
	return nil
}
