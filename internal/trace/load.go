package trace

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/bits-and-blooms/bitset"
)

type operandJSON struct {
	ID   *int    `json:"id"`
	Size *uint64 `json:"size"`
}

type taskJSON struct {
	Name      *string         `json:"name"`
	Ins       []int           `json:"ins"`
	Outs      []int           `json:"outs"`
	Workspace *uint64         `json:"workspace"`
	Time      *float64        `json:"time"` // microseconds
	Attr      json.RawMessage `json:"attr"`
}

type traceFileJSON struct {
	Data []json.RawMessage `json:"data"`
	Code []taskJSON        `json:"code"`
}

// Load reads a trace file and returns the dealloc-elided working schedule.
// `.share` rows are folded into operand aliasing, `.dealloc` rows into the
// already_on / not_dealloc placement sets.
func Load(path string) (*Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	var doc traceFileJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("parsing trace: no operand table")
	}

	operands, err := loadOperands(doc.Data)
	if err != nil {
		return nil, err
	}
	common := NewCommon(operands)

	full, err := loadTasks(doc.Code, operands)
	if err != nil {
		return nil, err
	}
	if err := discoverPlacement(full, common); err != nil {
		return nil, fmt.Errorf("invalid trace: %w", err)
	}

	// Refactor: the working schedule carries no dealloc rows, liveness is
	// re-derived from usage links.
	working := make([]*Task, 0, len(full))
	for _, t := range full {
		if !t.IsDealloc() {
			working = append(working, t)
		}
	}
	return NewSchedule(working, common), nil
}

func loadOperands(data []json.RawMessage) ([]*Operand, error) {
	operands := make([]*Operand, len(data))
	for i, raw := range data {
		var oj operandJSON
		if err := json.Unmarshal(raw, &oj); err != nil {
			return nil, fmt.Errorf("parsing operand %d: %w", i, err)
		}
		if oj.ID == nil || oj.Size == nil {
			return nil, fmt.Errorf("operand %d: missing id or size", i)
		}
		id := *oj.ID
		if id < 0 || id >= len(data) {
			return nil, fmt.Errorf("operand %d: id %d out of dense range [0, %d)", i, id, len(data))
		}
		if operands[id] != nil {
			return nil, fmt.Errorf("operand id %d appears twice", id)
		}
		operands[id] = &Operand{ID: id, Size: *oj.Size, Attr: raw}
	}
	return operands, nil
}

func loadTasks(code []taskJSON, operands []*Operand) ([]*Task, error) {
	// Aliases introduced by `.share`: every later reference to a shared
	// output is renamed to the source operand.
	alias := make([]int, len(operands))
	for i := range alias {
		alias[i] = i
	}
	resolve := func(id int) (*Operand, error) {
		if id < 0 || id >= len(operands) {
			return nil, fmt.Errorf("operand id %d out of range", id)
		}
		for alias[id] != id {
			id = alias[id]
		}
		return operands[id], nil
	}

	tasks := make([]*Task, 0, len(code))
	for i, tj := range code {
		if tj.Name == nil {
			return nil, fmt.Errorf("task %d: missing name", i)
		}
		name := *tj.Name
		if forbiddenNames[name] {
			return nil, fmt.Errorf("task %d: forbidden pseudo-op %q", i, name)
		}
		ins := make([]*Operand, len(tj.Ins))
		for j, id := range tj.Ins {
			op, err := resolve(id)
			if err != nil {
				return nil, fmt.Errorf("task %d (%s): %w", i, name, err)
			}
			ins[j] = op
		}
		outs := make([]*Operand, len(tj.Outs))
		for j, id := range tj.Outs {
			op, err := resolve(id)
			if err != nil {
				return nil, fmt.Errorf("task %d (%s): %w", i, name, err)
			}
			outs[j] = op
		}

		if name == NameShare {
			if len(ins) != 1 || len(outs) == 0 {
				return nil, fmt.Errorf("task %d: .share wants one input and at least one output", i)
			}
			for _, out := range outs {
				alias[out.ID] = ins[0].ID
			}
			continue
		}
		if name == NameDealloc {
			if len(ins) != 0 {
				return nil, fmt.Errorf("task %d: .dealloc with inputs", i)
			}
			tasks = append(tasks, DeallocTask(outs))
			continue
		}

		if tj.Workspace == nil || tj.Time == nil {
			return nil, fmt.Errorf("task %d (%s): missing workspace or time", i, name)
		}
		ns := uint64(math.Round(*tj.Time * 1e3))
		tasks = append(tasks, NewTask(name, ins, outs, *tj.Workspace, ns, tj.Attr))
	}
	return tasks, nil
}

// discoverPlacement sweeps the explicit trace once. Operands consumed before
// any production are loaded at entry (already_on); operands still resident
// after the sweep must remain live at exit (not_dealloc). The sweep doubles
// as the load-time liveness check.
func discoverPlacement(tasks []*Task, common *Common) error {
	n := uint(len(common.Operands))
	produced := bitset.New(n)
	resident := bitset.New(n)

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
			id := uint(u.Operand.ID)
			if !produced.Test(id) {
				common.AlreadyOn.Set(id)
				produced.Set(id)
				resident.Set(id)
			}
			if !resident.Test(id) {
				return fmt.Errorf("task %q consumes operand %d after its deallocation", t.Name, u.Operand.ID)
			}
		}
		for _, o := range t.Outs {
			produced.Set(uint(o.Operand.ID))
			resident.Set(uint(o.Operand.ID))
		}
	}

	common.NotDealloc = resident.Clone()
	return nil
}
