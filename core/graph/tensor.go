package graph

import (
	"fmt"
	"strings"

	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/ids"
	"github.com/spacemaninhust/TinyInfiniTensor/runtime"
)

// Tensor is a typed edge of the computation graph: it carries a shape
// and element type, an optional data binding resolved by dataMalloc, and
// non-owning links to its producing and consuming Operators. A Tensor is
// created and owned exclusively by a Graph; it is mutated only through
// Graph/optimizer operations (AddTarget, RemoveTarget, SetSource,
// SetShape, SetDataBlob), never directly by a caller holding a Tensor
// reference.
type Tensor struct {
	fuid  ids.Fuid
	shape types.Shape
	dtype types.DataType
	rt    runtime.Runtime

	registered bool

	source  Operator
	targets []Operator

	offset    int
	hasOffset bool
	ptr       runtime.Pointer
}

// NewDetachedTensor constructs a Tensor bound to rt but not yet owned by
// any Graph. Graph.AddTensor registers it, rejecting it if rt differs
// from the Graph's own Runtime (spec's addTensor Runtime-mismatch
// guard). Most callers want Graph.NewTensor instead, which constructs
// and registers in one step.
func NewDetachedTensor(rt runtime.Runtime, shape types.Shape, dtype types.DataType) *Tensor {
	return &Tensor{shape: shape.Clone(), dtype: dtype, rt: rt}
}

// Fuid returns the tensor's unique identifier.
func (t *Tensor) Fuid() ids.Fuid { return t.fuid }

// Runtime returns the Runtime this tensor was constructed against.
func (t *Tensor) Runtime() runtime.Runtime { return t.rt }

// Shape returns a copy of the tensor's current shape.
func (t *Tensor) Shape() types.Shape { return t.shape.Clone() }

// DataType returns the tensor's element type.
func (t *Tensor) DataType() types.DataType { return t.dtype }

// Bytes returns the product of the shape components times the element
// size. Panics if the shape contains a negative dimension.
func (t *Tensor) Bytes() int {
	for _, d := range t.shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", t.shape))
		}
	}
	return t.shape.Size() * t.dtype.ByteWidth()
}

// Source returns the Operator that produces this tensor, or nil if it
// has none (a graph input).
func (t *Tensor) Source() Operator { return t.source }

// Targets returns the Operators that consume this tensor.
func (t *Tensor) Targets() []Operator {
	out := make([]Operator, len(t.targets))
	copy(out, t.targets)
	return out
}

// SetSource rewires the tensor's producer. Called by Graph linkage
// maintenance and by the optimizer when detaching a rewritten edge.
func (t *Tensor) SetSource(op Operator) { t.source = op }

// AddTarget registers op as a consumer of this tensor, if not already
// present.
func (t *Tensor) AddTarget(op Operator) {
	for _, o := range t.targets {
		if o == op {
			return
		}
	}
	t.targets = append(t.targets, op)
}

// RemoveTarget unregisters op as a consumer of this tensor.
func (t *Tensor) RemoveTarget(op Operator) {
	for i, o := range t.targets {
		if o == op {
			t.targets = append(t.targets[:i], t.targets[i+1:]...)
			return
		}
	}
}

// SetShape replaces the tensor's shape. Only ShapeInfer calls this.
func (t *Tensor) SetShape(s types.Shape) { t.shape = s.Clone() }

// HasData reports whether dataMalloc has bound a data blob yet.
func (t *Tensor) HasData() bool { return t.ptr != nil }

// Offset returns the tensor's byte offset within the arena. Valid only
// after HasData is true.
func (t *Tensor) Offset() int { return t.offset }

// Ptr returns the tensor's resolved pointer. Valid only after HasData is
// true.
func (t *Tensor) Ptr() runtime.Pointer { return t.ptr }

// SetDataBlob binds the tensor to ptr (offset within an arena already
// fixed by the allocator). Called exactly once, by Graph.DataMalloc.
func (t *Tensor) SetDataBlob(offset int, ptr runtime.Pointer) {
	t.offset = offset
	t.hasOffset = true
	t.ptr = ptr
}

// String renders the tensor the way the Graph's toString does: a
// compact one-line summary used inside "Graph Tensors:".
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor %d, shape=%v, dtype=%s", t.fuid, []int(t.shape), t.dtype)
	if t.HasData() {
		fmt.Fprintf(&b, ", offset=%d", t.offset)
	}
	return b.String()
}
