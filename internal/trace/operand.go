package trace

import (
	"encoding/json"

	"github.com/bits-and-blooms/bitset"
)

// Operand is a tensor-like value, the unit of residency on device memory.
// Operands are created once at load and shared by identity across every
// schedule derived from the same trace.
type Operand struct {
	ID   int
	Size uint64

	// Attr is the operand descriptor exactly as it appeared in the trace
	// file; it is written back verbatim on dump.
	Attr json.RawMessage
}

// Common is the per-trace context shared by all sibling schedules: the
// operand table, the operands live at entry and the operands that must
// remain live at exit.
type Common struct {
	Operands   []*Operand
	AlreadyOn  *bitset.BitSet
	NotDealloc *bitset.BitSet
}

// NewCommon allocates a context for n operands.
func NewCommon(operands []*Operand) *Common {
	n := uint(len(operands))
	return &Common{
		Operands:   operands,
		AlreadyOn:  bitset.New(n),
		NotDealloc: bitset.New(n),
	}
}

// AlreadyOnBytes is the residency at schedule entry.
func (c *Common) AlreadyOnBytes() uint64 {
	var total uint64
	for id, ok := c.AlreadyOn.NextSet(0); ok; id, ok = c.AlreadyOn.NextSet(id + 1) {
		total += c.Operands[id].Size
	}
	return total
}
