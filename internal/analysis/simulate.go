package analysis

import (
	"fmt"

	"github.com/LyricZhao/DLMO/internal/trace"
)

func totalTime(s *trace.Schedule) uint64 {
	var total uint64
	for _, t := range s.Tasks {
		total += t.Duration
	}
	return total
}

// simulateMemory replays the schedule against a residency set seeded from
// already_on. A task's execution memory is the residency after its outputs
// materialize plus its workspace; operands in to_dealloc_after leave right
// after the task. Requires buildTopology to have run.
func simulateMemory(s *trace.Schedule) (uint64, error) {
	common := s.Common
	resident := common.AlreadyOn.Clone()
	current := common.AlreadyOnBytes()
	peak := current

	for _, t := range s.Tasks {
		for _, u := range t.Ins {
			if !resident.Test(uint(u.Operand.ID)) {
				return 0, fmt.Errorf("task %q input operand %d not resident", t.Name, u.Operand.ID)
			}
		}
		for _, o := range t.Outs {
			id := uint(o.Operand.ID)
			if !resident.Test(id) {
				resident.Set(id)
				current += o.Operand.Size
			}
		}
		t.ExecMem = current + t.Workspace
		if t.ExecMem > peak {
			peak = t.ExecMem
		}
		for _, op := range t.ToDeallocAfter {
			id := uint(op.ID)
			if !resident.Test(id) {
				return 0, fmt.Errorf("residency underflow on operand %d after task %q", op.ID, t.Name)
			}
			resident.Clear(id)
			current -= op.Size
		}
	}

	if !resident.Equal(common.NotDealloc) {
		return 0, fmt.Errorf("final residency differs from not_dealloc set")
	}
	return peak, nil
}
