package graph

import (
	"fmt"

	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/ids"
)

// MatMul is a 2-D matrix multiply with optional leading batch
// dimensions. TransA/TransB transpose the last two axes of the
// respective input before multiplication.
type MatMul struct {
	base
	TransA bool
	TransB bool
}

var _ Operator = (*MatMul)(nil)

func newMatMul(guid ids.Guid, a, b, c *Tensor, transA, transB bool) *MatMul {
	return &MatMul{base: newBase(guid, []*Tensor{a, b}, []*Tensor{c}), TransA: transA, TransB: transB}
}

func (m *MatMul) Type() OpType { return OpMatMul }

// InferShape implements the Gemm-style shape rule: swap the last two
// axes of A (resp. B) when TransA (resp. TransB) is set, then the output
// is A's batch prefix followed by A's row count and B's column count.
// Mismatched batch prefixes are a shape-inference failure.
func (m *MatMul) InferShape() ([]types.Shape, bool) {
	a := m.inputs[0].Shape()
	b := m.inputs[1].Shape()
	if len(a) < 2 || len(b) < 2 {
		return nil, false
	}
	if m.TransA {
		a = a.SwapLastTwo()
	}
	if m.TransB {
		b = b.SwapLastTwo()
	}
	if len(a) != len(b) {
		return nil, false
	}
	for i := 0; i < len(a)-2; i++ {
		if a[i] != b[i] {
			return nil, false
		}
	}

	out := make(types.Shape, 0, len(a))
	out = append(out, a[:len(a)-2]...)
	out = append(out, a[len(a)-2], b[len(b)-1])
	return []types.Shape{out}, true
}

func (m *MatMul) String() string {
	aTag, bTag := "A", "B"
	if m.TransA {
		aTag = "A^T"
	}
	if m.TransB {
		bTag = "B^T"
	}

	mm, n, k := 0, 0, 0
	a, b, c := m.inputs[0].Shape(), m.inputs[1].Shape(), m.outputs[0].Shape()
	if m.TransA {
		a = a.SwapLastTwo()
	}
	if m.TransB {
		b = b.SwapLastTwo()
	}
	if len(a) >= 2 {
		mm, k = a[len(a)-2], a[len(a)-1]
	}
	if len(b) >= 1 {
		n = b[len(b)-1]
	}
	_ = c

	return fmt.Sprintf("Matmul([%s,%s],A=%d,B=%d,C=%d,mnk=[%d,%d,%d])",
		aTag, bTag, m.inputs[0].Fuid(), m.inputs[1].Fuid(), m.outputs[0].Fuid(), mm, n, k)
}
