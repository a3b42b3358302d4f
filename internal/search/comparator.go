package search

import (
	"github.com/LyricZhao/DLMO/internal/trace"
)

// Default search parameters.
const (
	MemoryFactor         = 0.6
	TimeFactor           = 0.4
	ReconsiderRatio      = 1.2
	TimeRequirementRatio = 1.01
	SearchLimit          = 1000
	QueueSizeLimit       = 100000
	PrintFrequency       = 100
)

// Comparator ranks schedules against the memory limit and the origin time.
type Comparator struct {
	OriginTime uint64
	Limit      uint64

	MemoryFactor         float64
	TimeFactor           float64
	ReconsiderRatio      float64
	TimeRequirementRatio float64
}

// Score combines the exceeded-memory and exceeded-time ratios; lower is
// better. A schedule within the limit pays no memory penalty.
func (c Comparator) Score(s *trace.Schedule) float64 {
	var memRatio float64
	if s.PeakMemory > c.Limit {
		memRatio = float64(s.PeakMemory-c.Limit) / float64(c.Limit)
	}
	timeRatio := (float64(s.TotalTime) - float64(c.OriginTime)) / float64(c.OriginTime)
	return c.MemoryFactor*memRatio + c.TimeFactor*timeRatio
}

// Less reports whether s1 is strictly preferred: a schedule meeting the
// limit beats one that does not; among schedules meeting it the faster
// wins; otherwise the lower score wins.
func (c Comparator) Less(s1, s2 *trace.Schedule) bool {
	m1, m2 := s1.PeakMemory <= c.Limit, s2.PeakMemory <= c.Limit
	if m1 != m2 {
		return m1
	}
	if m1 {
		return s1.TotalTime < s2.TotalTime
	}
	return c.Score(s1) < c.Score(s2)
}

// Satisfy is the termination predicate: within the memory limit and within
// the tolerated slowdown of the origin.
func (c Comparator) Satisfy(s *trace.Schedule) bool {
	return s.PeakMemory <= c.Limit &&
		float64(s.TotalTime) <= c.TimeRequirementRatio*float64(c.OriginTime)
}

// Considerable keeps s in the frontier only while its score stays within
// ReconsiderRatio of the current best.
func (c Comparator) Considerable(best, s *trace.Schedule) bool {
	return c.Score(best)*c.ReconsiderRatio > c.Score(s)
}
