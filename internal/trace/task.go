package trace

import (
	"encoding/json"
)

// Reserved pseudo-op names. Deallocs and shares are folded into the working
// representation at load; transfer ops are not supported and rejected.
const (
	NameDealloc = ".dealloc"
	NameShare   = ".share"
)

var forbiddenNames = map[string]bool{
	".host2device": true,
	".device2host": true,
	".sync":        true,
	".alloc":       true,
}

// Usage is a task-local record of one operand referenced at one position.
// The link fields are populated by the analyzer and belong to the schedule
// owning the task; a task copy starts with them cleared.
type Usage struct {
	Operand *Operand
	Task    *Task

	Gen     *Usage // output usage that produced the version read here
	PrevUse *Usage // previous reference to the same operand
	NextUse *Usage // next reference to the same generation
	NextGen *Usage // output usage of the next regeneration
	LastUse *Usage // tail of the NextUse chain
	Version uint64
}

// Task is one recorded operation. Structural fields are fixed at load;
// the scratch fields are recomputed by every analysis pass and are only
// meaningful for the schedule that ran the pass.
type Task struct {
	Name      string
	Workspace uint64
	Duration  uint64 // nanoseconds
	Ins       []*Usage
	Outs      []*Usage
	Inplace   bool
	Attr      json.RawMessage

	// Analyzer scratch.
	TimeStamp      int
	ExecMem        uint64
	ToDeallocAfter []*Operand

	hashDone bool
	hashVal  uint64
}

// NewTask builds a compute task over shared operands. The inplace flag is
// derived: any output operand that also appears among the inputs.
func NewTask(name string, ins, outs []*Operand, workspace, duration uint64, attr json.RawMessage) *Task {
	t := &Task{
		Name:      name,
		Workspace: workspace,
		Duration:  duration,
		Attr:      attr,
	}
	t.Ins = make([]*Usage, len(ins))
	for i, op := range ins {
		t.Ins[i] = &Usage{Operand: op, Task: t}
	}
	t.Outs = make([]*Usage, len(outs))
	for i, op := range outs {
		t.Outs[i] = &Usage{Operand: op, Task: t}
		for _, in := range ins {
			if in == op {
				t.Inplace = true
			}
		}
	}
	return t
}

// DeallocTask builds a `.dealloc` pseudo-op freeing the given operands.
func DeallocTask(operands []*Operand) *Task {
	return NewTask(NameDealloc, nil, operands, 0, 0, nil)
}

// Copy duplicates the structural fields and the cached hash. Usages are
// re-allocated with their links cleared so analyzer state never leaks
// between schedules.
func (t *Task) Copy() *Task {
	c := &Task{
		Name:      t.Name,
		Workspace: t.Workspace,
		Duration:  t.Duration,
		Inplace:   t.Inplace,
		Attr:      t.Attr,
		hashDone:  t.hashDone,
		hashVal:   t.hashVal,
	}
	c.Ins = make([]*Usage, len(t.Ins))
	for i, u := range t.Ins {
		c.Ins[i] = &Usage{Operand: u.Operand, Task: c}
	}
	c.Outs = make([]*Usage, len(t.Outs))
	for i, u := range t.Outs {
		c.Outs[i] = &Usage{Operand: u.Operand, Task: c}
	}
	return c
}

func (t *Task) IsDealloc() bool { return t.Name == NameDealloc }
func (t *Task) IsShare() bool   { return t.Name == NameShare }

// IsForbidden reports whether the task name is a rejected pseudo-op
// (host transfers, syncs and explicit allocs are not modeled).
func (t *Task) IsForbidden() bool { return forbiddenNames[t.Name] }

// Hash is a structural fingerprint over name, workspace and operand
// identities, cached on first use and carried through Copy.
func (t *Task) Hash() uint64 {
	if t.hashDone {
		return t.hashVal
	}
	h := hashString(t.Name)
	h = h*131 + t.Workspace
	for _, u := range t.Ins {
		h = h*131 + uint64(u.Operand.ID) + 1
	}
	for _, u := range t.Outs {
		h = h*131 + uint64(u.Operand.ID) + 1
	}
	t.hashDone = true
	t.hashVal = h
	return h
}

func hashString(s string) uint64 {
	var h uint64
	for i := 0; i < len(s); i++ {
		h = h*131 + uint64(s[i])
	}
	return h
}
