package graph

import (
	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/ids"
)

// OpType tags the kind of operator a node represents. New kernels are
// added by extending this enum and providing a concrete Operator
// implementation. The optimizer matches operators by type assertion on
// their concrete types (*MatMul, *Transpose).
type OpType int

const (
	OpUnknown OpType = iota
	OpMatMul
	OpTranspose
)

func (t OpType) String() string {
	switch t {
	case OpMatMul:
		return "MatMul"
	case OpTranspose:
		return "Transpose"
	default:
		return "Unknown"
	}
}

// Operator is a typed node of the computation graph. Every concrete
// operator (MatMul, Transpose, ...) embeds base for the shared
// linkage-management contract and implements Type/InferShape/String for
// its own semantics.
type Operator interface {
	Guid() ids.Guid
	Type() OpType

	Inputs() []*Tensor
	Outputs() []*Tensor
	Predecessors() []Operator
	Successors() []Operator

	// ReplaceInput swaps old for new in the input list, preserving
	// order. Used by the optimizer when rewiring consumers.
	ReplaceInput(old, new *Tensor)

	AddPredecessor(op Operator)
	AddSuccessor(op Operator)
	RemovePredecessor(op Operator)
	RemoveSuccessor(op Operator)

	// InferShape computes the shape of every output from the current
	// inputs. ok is false when the inputs are structurally
	// incompatible (shape-inference failure, §7).
	InferShape() (shapes []types.Shape, ok bool)

	String() string
}

// base implements the linkage-management half of the Operator contract;
// it is embedded by every concrete operator type.
type base struct {
	guid    ids.Guid
	inputs  []*Tensor
	outputs []*Tensor

	predecessors []Operator
	successors   []Operator
}

func newBase(guid ids.Guid, inputs, outputs []*Tensor) base {
	return base{guid: guid, inputs: inputs, outputs: outputs}
}

func (b *base) Guid() ids.Guid { return b.guid }

func (b *base) Inputs() []*Tensor {
	out := make([]*Tensor, len(b.inputs))
	copy(out, b.inputs)
	return out
}

func (b *base) Outputs() []*Tensor {
	out := make([]*Tensor, len(b.outputs))
	copy(out, b.outputs)
	return out
}

func (b *base) Predecessors() []Operator {
	out := make([]Operator, len(b.predecessors))
	copy(out, b.predecessors)
	return out
}

func (b *base) Successors() []Operator {
	out := make([]Operator, len(b.successors))
	copy(out, b.successors)
	return out
}

func (b *base) ReplaceInput(old, new *Tensor) {
	for i, in := range b.inputs {
		if in == old {
			b.inputs[i] = new
			return
		}
	}
}

func (b *base) AddPredecessor(op Operator) {
	for _, p := range b.predecessors {
		if p == op {
			return
		}
	}
	b.predecessors = append(b.predecessors, op)
}

func (b *base) AddSuccessor(op Operator) {
	for _, s := range b.successors {
		if s == op {
			return
		}
	}
	b.successors = append(b.successors, op)
}

func (b *base) RemovePredecessor(op Operator) {
	for i, p := range b.predecessors {
		if p == op {
			b.predecessors = append(b.predecessors[:i], b.predecessors[i+1:]...)
			return
		}
	}
}

func (b *base) RemoveSuccessor(op Operator) {
	for i, s := range b.successors {
		if s == op {
			b.successors = append(b.successors[:i], b.successors[i+1:]...)
			return
		}
	}
}
