package analysis

import (
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/LyricZhao/DLMO/internal/trace"
)

// Bounds on candidate generation and pruning.
const (
	ReGenTaskLimit  = 3
	O1OccupiesLimit = 2
	O2OccupiesLimit = 2
	TimesPerRandom  = 4
)

// Score weights for the two candidate rankings: score1 leans on time,
// score2 on memory.
const (
	o1MemoryWeight = 0.2
	o2MemoryWeight = 0.8
)

// Params bounds candidate generation. Rand drives the occasional random
// pick and must be seeded deterministically for reproducible runs.
type Params struct {
	ReGenTaskLimit  int
	O1OccupiesLimit int
	O2OccupiesLimit int
	TimesPerRandom  int
	Rand            *rand.Rand
}

func DefaultParams(seed int64) Params {
	return Params{
		ReGenTaskLimit:  ReGenTaskLimit,
		O1OccupiesLimit: O1OccupiesLimit,
		O2OccupiesLimit: O2OccupiesLimit,
		TimesPerRandom:  TimesPerRandom,
		Rand:            rand.New(rand.NewSource(seed)),
	}
}

// Candidates enumerates, expands, scores and prunes the transformation
// candidates of an analyzed schedule, caching the result on the schedule.
// originTime is the total time of the search origin (score normalization).
func Candidates(s *trace.Schedule, originTime uint64, p Params) ([]*trace.Occupy, error) {
	if err := Analyze(s); err != nil {
		return nil, err
	}
	if s.Candidates != nil {
		return s.Candidates, nil
	}
	if len(s.Tasks) == 0 {
		return nil, nil
	}

	// Stamp the order and locate the first task attaining the peak.
	peakTS := -1
	for i, t := range s.Tasks {
		t.TimeStamp = i + 1
		if peakTS < 0 && t.ExecMem == s.PeakMemory {
			peakTS = t.TimeStamp
		}
	}
	if peakTS < 0 {
		panic("analysis: no task attains the simulated peak")
	}

	// One candidate per occupying generator: its first post-peak use.
	taken := make(map[*trace.Task]bool)
	var occs []*trace.Occupy
	for _, use := range s.Tasks {
		if use.TimeStamp <= peakTS {
			continue
		}
		for _, u := range use.Ins {
			if u.Gen == nil {
				continue
			}
			gen := u.Gen.Task
			if gen.TimeStamp >= peakTS || taken[gen] {
				continue
			}
			taken[gen] = true
			if occ := makeOccupy(s, gen, use, peakTS, originTime, p); occ != nil {
				occs = append(occs, occ)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"peak_ts":    peakTS,
		"candidates": len(occs),
	}).Debug("candidate enumeration")

	s.Candidates = prune(occs, p)
	return s.Candidates, nil
}

func makeOccupy(s *trace.Schedule, gen, use *trace.Task, peakTS int, originTime uint64, p Params) *trace.Occupy {
	reGen, reGenIns, ok := closure(gen, use, p.ReGenTaskLimit)
	if !ok {
		return nil
	}

	// Move: the original generator may be deleted at its site iff no output
	// has a surviving consumer before the rematerialization point.
	move := true
	for _, o := range gen.Outs {
		if o.NextUse != nil && o.NextUse.Task.TimeStamp < use.TimeStamp {
			move = false
			break
		}
	}

	occ := &trace.Occupy{Gen: gen, Use: use, ReGen: reGen, ReGenIns: reGenIns, Move: move}
	scoreOccupy(s, occ, peakTS, originTime)
	return occ
}

// closure determines which predecessors of gen must be replicated so that
// every input of gen still carries its recorded version at the insertion
// point. Bounded: candidates needing more than limit replicas are rejected.
func closure(gen, use *trace.Task, limit int) (reGen []*trace.Task, reGenIns []*trace.Usage, ok bool) {
	ins := append([]*trace.Usage(nil), gen.Ins...)
	for {
		var bad *trace.Usage
		for _, u := range ins {
			// The value visible just before `use` is the one from the last
			// regeneration preceding it, if any.
			var last *trace.Usage
			for g := u.NextGen; g != nil && g.Task.TimeStamp < use.TimeStamp; g = g.NextGen {
				last = g
			}
			if last != nil && last.Version != u.Version {
				bad = u
				break
			}
		}
		if bad == nil {
			return reGen, ins, true
		}
		if bad.Gen == nil {
			// A loaded-at-entry value was clobbered; nothing can re-run.
			return nil, nil, false
		}
		g := bad.Gen.Task
		ins = removeUsage(ins, bad)
		if containsTask(reGen, g) {
			continue
		}
		if len(reGen) == limit {
			return nil, nil, false
		}
		reGen = append(reGen, g)
		ins = append(ins, g.Ins...)
	}
}

// scoreOccupy fills time_increased / memory_increased and the two weighted
// rankings. Memory is normalized by the current peak, time by the origin's
// total time; lower is better on both.
func scoreOccupy(s *trace.Schedule, occ *trace.Occupy, peakTS int, originTime uint64) {
	var timeInc float64
	for _, g := range occ.ReGen {
		timeInc += float64(g.Duration)
	}
	if !occ.Move {
		timeInc += float64(occ.Gen.Duration)
	}

	producedByGen := make(map[int]bool, len(occ.Gen.Outs))
	for _, o := range occ.Gen.Outs {
		producedByGen[o.Operand.ID] = true
	}

	var memInc float64
	counted := make(map[int]bool)
	for _, u := range occ.ReGenIns {
		id := u.Operand.ID
		if producedByGen[id] || counted[id] {
			continue
		}
		// Operands that were dead before the peak must now live through it.
		if u.LastUse != nil && u.LastUse.Task.TimeStamp < peakTS {
			counted[id] = true
			memInc += float64(u.Operand.Size)
		}
	}
	for _, v := range occ.Use.Ins {
		if !producedByGen[v.Operand.ID] {
			continue
		}
		// The original value frees up before the peak once rematerialized.
		if v.PrevUse != nil && v.PrevUse.Task.TimeStamp < peakTS {
			memInc -= float64(v.Operand.Size)
		}
	}

	memTerm := memInc / float64(s.PeakMemory)
	var timeTerm float64
	if originTime > 0 {
		timeTerm = timeInc / float64(originTime)
	}
	occ.Score1 = o1MemoryWeight*memTerm + (1-o1MemoryWeight)*timeTerm
	occ.Score2 = o2MemoryWeight*memTerm + (1-o2MemoryWeight)*timeTerm
}

// prune keeps the best few candidates by each ranking plus an occasional
// random pick, deduplicated by generator.
func prune(occs []*trace.Occupy, p Params) []*trace.Occupy {
	if len(occs) == 0 {
		return nil
	}

	var kept []*trace.Occupy
	add := func(o *trace.Occupy) {
		for _, k := range kept {
			if k.SameGen(o) {
				return
			}
		}
		kept = append(kept, o)
	}

	by1 := append([]*trace.Occupy(nil), occs...)
	sort.SliceStable(by1, func(i, j int) bool { return by1[i].Score1 < by1[j].Score1 })
	for i := 0; i < len(by1) && i < p.O1OccupiesLimit; i++ {
		add(by1[i])
	}

	by2 := append([]*trace.Occupy(nil), occs...)
	sort.SliceStable(by2, func(i, j int) bool { return by2[i].Score2 < by2[j].Score2 })
	for i := 0; i < len(by2) && i < p.O2OccupiesLimit; i++ {
		add(by2[i])
	}

	if p.Rand != nil && p.TimesPerRandom > 0 && p.Rand.Intn(p.TimesPerRandom) == 0 {
		add(occs[p.Rand.Intn(len(occs))])
	}
	return kept
}

func removeUsage(s []*trace.Usage, u *trace.Usage) []*trace.Usage {
	for i, v := range s {
		if v == u {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func containsTask(s []*trace.Task, t *trace.Task) bool {
	for _, v := range s {
		if v == t {
			return true
		}
	}
	return false
}
