package analysis

import (
	"github.com/LyricZhao/DLMO/internal/trace"
)

// buildTopology reconstructs the usage links of the schedule: generator and
// neighboring-use links with generation versions on the forward sweep,
// per-task dealloc sets on a second forward sweep, then regeneration and
// last-use links on two backward sweeps.
func buildTopology(s *trace.Schedule) {
	clearScratch(s)

	n := len(s.Common.Operands)
	lastGen := make([]*trace.Usage, n)
	lastUse := make([]*trace.Usage, n)

	for _, t := range s.Tasks {
		for _, u := range t.Ins {
			id := u.Operand.ID
			u.Gen = lastGen[id]
			u.PrevUse = lastUse[id]
			if u.PrevUse != nil {
				u.PrevUse.NextUse = u
			}
			if u.Gen != nil {
				if u.Gen.NextUse == nil {
					u.Gen.NextUse = u
				}
				u.Version = u.Gen.Version
			}
			lastUse[id] = u
		}
		for _, o := range t.Outs {
			id := o.Operand.ID
			// Version: rolling polynomial over the input versions and the
			// operand id. Re-running the generator with identical input
			// versions reproduces the same version; the +1 keeps generated
			// versions distinct from the initial (loaded-at-entry) zero.
			var h uint64
			for _, in := range t.Ins {
				h = h*131 + in.Version
			}
			h = h*131 + uint64(id) + 1
			o.Gen = o
			o.Version = h
			lastGen[id] = o
			lastUse[id] = o
		}
	}

	// to_dealloc_after: a generation's residency ends at its last use, so
	// the operand leaves right after the task that references it last —
	// once per generation, a later regeneration re-materializes it. Pinned
	// (not_dealloc) operands and inplace aliases stay.
	lastRef := make([]*trace.Task, n)
	for _, t := range s.Tasks {
		for _, u := range t.Ins {
			lastRef[u.Operand.ID] = t
		}
		for _, o := range t.Outs {
			id := o.Operand.ID
			prev := lastRef[id]
			if prev != nil && prev != t &&
				!s.Common.NotDealloc.Test(uint(id)) && !usesAndProduces(prev, id) {
				prev.ToDeallocAfter = append(prev.ToDeallocAfter, o.Operand)
			}
			lastRef[id] = t
		}
	}
	for id, t := range lastRef {
		if t == nil || s.Common.NotDealloc.Test(uint(id)) {
			continue
		}
		if usesAndProduces(t, id) {
			continue
		}
		t.ToDeallocAfter = append(t.ToDeallocAfter, s.Common.Operands[id])
	}

	// next_gen: the earliest regeneration strictly after each usage's
	// position; outputs of a task count as regenerations for its inputs.
	nextGen := make([]*trace.Usage, n)
	for i := len(s.Tasks) - 1; i >= 0; i-- {
		t := s.Tasks[i]
		for _, o := range t.Outs {
			id := o.Operand.ID
			o.NextGen = nextGen[id]
			nextGen[id] = o
		}
		for _, u := range t.Ins {
			u.NextGen = nextGen[u.Operand.ID]
		}
	}

	// last_use: tail of the next_use chain.
	for i := len(s.Tasks) - 1; i >= 0; i-- {
		t := s.Tasks[i]
		for j := len(t.Outs) - 1; j >= 0; j-- {
			setLastUse(t.Outs[j])
		}
		for j := len(t.Ins) - 1; j >= 0; j-- {
			setLastUse(t.Ins[j])
		}
	}
}

func setLastUse(u *trace.Usage) {
	if u.NextUse == nil {
		u.LastUse = u
		return
	}
	u.LastUse = u.NextUse.LastUse
}

func usesAndProduces(t *trace.Task, id int) bool {
	in, out := false, false
	for _, u := range t.Ins {
		if u.Operand.ID == id {
			in = true
		}
	}
	for _, o := range t.Outs {
		if o.Operand.ID == id {
			out = true
		}
	}
	return in && out
}

func clearScratch(s *trace.Schedule) {
	for _, t := range s.Tasks {
		t.TimeStamp = 0
		t.ExecMem = 0
		t.ToDeallocAfter = nil
		for _, u := range t.Ins {
			*u = trace.Usage{Operand: u.Operand, Task: t}
		}
		for _, o := range t.Outs {
			*o = trace.Usage{Operand: o.Operand, Task: t}
		}
	}
}
