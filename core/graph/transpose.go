package graph

import (
	"fmt"

	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/ids"
)

// Transpose permutes the axes of its input according to Perm, a
// permutation of 0..rank-1.
type Transpose struct {
	base
	Perm []int
}

var _ Operator = (*Transpose)(nil)

func newTranspose(guid ids.Guid, input, output *Tensor, perm []int) *Transpose {
	p := make([]int, len(perm))
	copy(p, perm)
	return &Transpose{base: newBase(guid, []*Tensor{input}, []*Tensor{output}), Perm: p}
}

func (t *Transpose) Type() OpType { return OpTranspose }

func (t *Transpose) InferShape() ([]types.Shape, bool) {
	in := t.inputs[0].Shape()
	if len(t.Perm) != len(in) {
		return nil, false
	}
	seen := make([]bool, len(in))
	out := make(types.Shape, len(in))
	for i, axis := range t.Perm {
		if axis < 0 || axis >= len(in) || seen[axis] {
			return nil, false
		}
		seen[axis] = true
		out[i] = in[axis]
	}
	return []types.Shape{out}, true
}

// SwapsLastTwoOnly reports whether Perm swaps exactly the last two axes
// of a rank >= 2 tensor, i.e. equals [0,1,...,rank-3,rank-1,rank-2].
func (t *Transpose) SwapsLastTwoOnly() bool {
	n := len(t.Perm)
	if n < 2 {
		return false
	}
	for i := 0; i < n-2; i++ {
		if t.Perm[i] != i {
			return false
		}
	}
	return t.Perm[n-2] == n-1 && t.Perm[n-1] == n-2
}

// ComposesToIdentity reports whether applying t.Perm then next.Perm is
// the identity permutation (next undoes t).
func (t *Transpose) ComposesToIdentity(next *Transpose) bool {
	if len(t.Perm) != len(next.Perm) {
		return false
	}
	for i, axis := range t.Perm {
		if next.Perm[axis] != i {
			return false
		}
	}
	return true
}

func (t *Transpose) String() string {
	return fmt.Sprintf("Transpose(perm=%v,in=%d,out=%d)", t.Perm, t.inputs[0].Fuid(), t.outputs[0].Fuid())
}
