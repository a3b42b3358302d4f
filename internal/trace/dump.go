package trace

import (
	"encoding/json"
	"fmt"
	"os"
)

type taskOutJSON struct {
	Name      string          `json:"name"`
	Ins       []int           `json:"ins"`
	Outs      []int           `json:"outs"`
	Workspace uint64          `json:"workspace"`
	Time      float64         `json:"time"` // microseconds
	Attr      json.RawMessage `json:"attr"`
}

type traceOutJSON struct {
	Data []json.RawMessage `json:"data"`
	Code []taskOutJSON     `json:"code"`
}

// Restore materializes the dealloc-elided schedule back into an explicit
// sequence: each task whose to_dealloc_after set is non-empty is followed by
// a synthesized `.dealloc` row. The schedule must be analyzed.
func (s *Schedule) Restore() []*Task {
	out := make([]*Task, 0, len(s.Tasks)*2)
	for _, t := range s.Tasks {
		out = append(out, t)
		if len(t.ToDeallocAfter) > 0 {
			out = append(out, DeallocTask(t.ToDeallocAfter))
		}
	}
	return out
}

// checkRestored re-simulates residency over an explicit task sequence.
func (s *Schedule) checkRestored(tasks []*Task) error {
	resident := s.Common.AlreadyOn.Clone()
	for _, t := range tasks {
		if t.IsDealloc() {
			for _, o := range t.Outs {
				id := uint(o.Operand.ID)
				if !resident.Test(id) {
					return fmt.Errorf("dealloc of non-resident operand %d", o.Operand.ID)
				}
				resident.Clear(id)
			}
			continue
		}
		for _, u := range t.Ins {
			if !resident.Test(uint(u.Operand.ID)) {
				return fmt.Errorf("task %q input operand %d not resident", t.Name, u.Operand.ID)
			}
		}
		for _, o := range t.Outs {
			resident.Set(uint(o.Operand.ID))
		}
	}
	if !resident.Equal(s.Common.NotDealloc) {
		return fmt.Errorf("final residency differs from not_dealloc set")
	}
	return nil
}

// Dump restores the schedule and writes it in the trace file format. The
// operand table round-trips verbatim. A validity re-simulation guards the
// written file.
func Dump(s *Schedule, path string) error {
	restored := s.Restore()
	if err := s.checkRestored(restored); err != nil {
		return fmt.Errorf("restored schedule invalid: %w", err)
	}

	doc := traceOutJSON{
		Data: make([]json.RawMessage, len(s.Common.Operands)),
		Code: make([]taskOutJSON, len(restored)),
	}
	for i, op := range s.Common.Operands {
		if op.Attr != nil {
			doc.Data[i] = op.Attr
			continue
		}
		raw, err := json.Marshal(operandJSON{ID: &op.ID, Size: &op.Size})
		if err != nil {
			return fmt.Errorf("marshaling operand %d: %w", op.ID, err)
		}
		doc.Data[i] = raw
	}
	for i, t := range restored {
		tj := taskOutJSON{
			Name:      t.Name,
			Ins:       make([]int, len(t.Ins)),
			Outs:      make([]int, len(t.Outs)),
			Workspace: t.Workspace,
			Time:      float64(t.Duration) / 1e3,
			Attr:      t.Attr,
		}
		for j, u := range t.Ins {
			tj.Ins[j] = u.Operand.ID
		}
		for j, u := range t.Outs {
			tj.Outs[j] = u.Operand.ID
		}
		doc.Code[i] = tj
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling trace: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}
