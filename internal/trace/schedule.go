package trace

import (
	"fmt"
)

// Schedule is an ordered task list over a shared Common. Statistics and the
// candidate list are caches filled by the analyzer, the structural hash is
// cached on the first call to Hash; a schedule produced by a rewrite starts
// with all of them unset.
type Schedule struct {
	Tasks  []*Task
	Common *Common

	Analyzed   bool
	PeakMemory uint64
	TotalTime  uint64 // nanoseconds

	Candidates []*Occupy

	hashDone bool
	hashVal  uint64
}

func NewSchedule(tasks []*Task, common *Common) *Schedule {
	return &Schedule{Tasks: tasks, Common: common}
}

// Hash rolls the task hashes into a structural fingerprint of the sequence.
func (s *Schedule) Hash() uint64 {
	if s.hashDone {
		return s.hashVal
	}
	var h uint64
	for _, t := range s.Tasks {
		h = h*131 + t.Hash()
	}
	s.hashDone = true
	s.hashVal = h
	return h
}

// Info renders the analyzed statistics for console output.
func (s *Schedule) Info() string {
	return fmt.Sprintf("peak memory: %s, total time: %s",
		PrettyBytes(s.PeakMemory), PrettyNanos(s.TotalTime))
}

// Occupy is one transformation candidate: re-run Gen just before Use so
// that Gen's output need not stay resident across the memory peak.
type Occupy struct {
	Gen *Task
	Use *Task

	// ReGen are the extra tasks needed to reproduce stale inputs of Gen at
	// the insertion point, in discovery order; the rewriter emits them
	// reversed. ReGenIns is the accumulated input set of the replica group.
	ReGen    []*Task
	ReGenIns []*Usage

	// Move marks that Gen has no surviving consumer before Use and may be
	// deleted at its original position.
	Move bool

	Score1 float64
	Score2 float64
}

// SameGen reports candidate equality: for a given peak each generator
// contributes at most one candidate (its first post-peak use), so identity
// of Gen identifies the candidate.
func (o *Occupy) SameGen(p *Occupy) bool { return o.Gen == p.Gen }
