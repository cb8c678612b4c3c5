// Package graph implements the computation graph: the Tensor and
// Operator entities, their linkage invariants, and the Graph aggregate
// root that drives topological sort, shape inference, memory planning
// and the peephole optimizer.
package graph

import (
	"fmt"
	"strings"

	"github.com/spacemaninhust/TinyInfiniTensor/config"
	"github.com/spacemaninhust/TinyInfiniTensor/core/alloc"
	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/ids"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/logger"
	"github.com/spacemaninhust/TinyInfiniTensor/runtime"
)

// Graph owns every Tensor and Operator reachable from it, plus the
// Allocator used to plan their memory. It is not safe for concurrent
// use: the Graph, its Tensors, Operators and Allocator form a single
// mutable aggregate with exclusive access by the constructing caller.
type Graph struct {
	rt    runtime.Runtime
	alloc *alloc.Allocator

	tensors   []*Tensor
	operators []Operator

	fuids ids.Counter
	guids ids.Counter

	sorted bool
}

// New constructs an empty Graph bound to rt, using cfg to tune its
// Allocator.
func New(rt runtime.Runtime, cfg config.Allocator) *Graph {
	return &Graph{
		rt:    rt,
		alloc: alloc.New(rt, cfg),
	}
}

// Runtime returns the Graph's Runtime collaborator.
func (g *Graph) Runtime() runtime.Runtime { return g.rt }

// Allocator returns the Graph's Allocator.
func (g *Graph) Allocator() *alloc.Allocator { return g.alloc }

// NewTensor creates, registers and returns a Tensor with the given
// shape and element type.
func (g *Graph) NewTensor(shape types.Shape, dtype types.DataType) *Tensor {
	t := &Tensor{fuid: ids.Fuid(g.fuids.Next()), shape: shape.Clone(), dtype: dtype, rt: g.rt, registered: true}
	g.tensors = append(g.tensors, t)
	return t
}

// NewTensors creates and registers one Tensor per shape, all sharing
// dtype.
func (g *Graph) NewTensors(shapes []types.Shape, dtype types.DataType) []*Tensor {
	out := make([]*Tensor, len(shapes))
	for i, s := range shapes {
		out[i] = g.NewTensor(s, dtype)
	}
	return out
}

// AddTensor registers an already-constructed Tensor (e.g. one built
// with NewDetachedTensor) with the Graph, assigning it a Fuid if it
// doesn't already have one. It is a structural assertion — and panics,
// never returning an error to the caller — for t to carry a non-nil
// Runtime that differs from the Graph's own, matching the Runtime
// guard checkValid's sibling preconditions enforce elsewhere.
func (g *Graph) AddTensor(t *Tensor) *Tensor {
	if t.rt != nil && t.rt != g.rt {
		panic(fmt.Sprintf("graph: AddTensor: tensor's runtime %s does not match graph's runtime %s", t.rt, g.rt))
	}
	if !t.registered {
		t.fuid = ids.Fuid(g.fuids.Next())
		t.rt = g.rt
		t.registered = true
	}
	g.tensors = append(g.tensors, t)
	return t
}

// AddTensors registers each Tensor in ts, in order, via AddTensor.
func (g *Graph) AddTensors(ts []*Tensor) []*Tensor {
	out := make([]*Tensor, len(ts))
	for i, t := range ts {
		out[i] = g.AddTensor(t)
	}
	return out
}

// Tensors returns the Graph's tensors in registration order.
func (g *Graph) Tensors() []*Tensor {
	out := make([]*Tensor, len(g.tensors))
	copy(out, g.tensors)
	return out
}

// Operators returns the Graph's operators in their current order (the
// topological order, once TopoSort has succeeded).
func (g *Graph) Operators() []Operator {
	out := make([]Operator, len(g.operators))
	copy(out, g.operators)
	return out
}

// GetTensor looks up a tensor by Fuid.
func (g *Graph) GetTensor(fuid ids.Fuid) (*Tensor, bool) {
	for _, t := range g.tensors {
		if t.fuid == fuid {
			return t, true
		}
	}
	return nil, false
}

// RemoveTensor detaches t from the Graph's tensor list. Used by the
// optimizer when deleting intermediate edges it has rewritten away.
func (g *Graph) RemoveTensor(t *Tensor) {
	for i, c := range g.tensors {
		if c == t {
			g.tensors = append(g.tensors[:i], g.tensors[i+1:]...)
			return
		}
	}
}

// RemoveOperator detaches op from the Graph's operator list. Used by the
// optimizer when a rewrite eliminates a node.
func (g *Graph) RemoveOperator(op Operator) {
	for i, c := range g.operators {
		if c == op {
			g.operators = append(g.operators[:i], g.operators[i+1:]...)
			g.sorted = false
			return
		}
	}
}

func (g *Graph) connect(op Operator) {
	for _, in := range op.Inputs() {
		in.AddTarget(op)
		if pred := in.Source(); pred != nil {
			pred.AddSuccessor(op)
			op.AddPredecessor(pred)
		}
	}
	for _, out := range op.Outputs() {
		out.SetSource(op)
		for _, succ := range out.Targets() {
			succ.AddPredecessor(op)
			op.AddSuccessor(succ)
		}
	}
}

// AddOperatorAndConnect registers op, then wires predecessor/successor
// edges and tensor source/target links from its declared inputs and
// outputs. Clears the sorted flag.
func (g *Graph) AddOperatorAndConnect(op Operator) {
	g.operators = append(g.operators, op)
	g.connect(op)
	g.sorted = false
	logger.Log.Debug().Str("guid", ids.Short(int64(op.Guid()))).Str("type", op.Type().String()).Msg("graph: operator connected")
}

// NewMatMul creates a MatMul node with a fresh Guid, wires it into the
// graph, and returns it.
func (g *Graph) NewMatMul(a, b, c *Tensor, transA, transB bool) *MatMul {
	op := newMatMul(ids.Guid(g.guids.Next()), a, b, c, transA, transB)
	g.AddOperatorAndConnect(op)
	return op
}

// NewTranspose creates a Transpose node with a fresh Guid, wires it into
// the graph, and returns it.
func (g *Graph) NewTranspose(input, output *Tensor, perm []int) *Transpose {
	op := newTranspose(ids.Guid(g.guids.Next()), input, output, perm)
	g.AddOperatorAndConnect(op)
	return op
}

// TopoSort repeatedly promotes operators whose inputs' producers have
// already been emitted (or have none) to the tail of a new, sorted
// order. Order among simultaneously-ready operators is their current
// list order. Returns false (without modifying the Graph) if a full
// pass makes no progress, which signals a cycle or a dangling producer.
func (g *Graph) TopoSort() bool {
	if g.sorted {
		return true
	}

	emitted := make(map[Operator]bool, len(g.operators))
	sorted := make([]Operator, 0, len(g.operators))

	for len(sorted) < len(g.operators) {
		progress := false
		for _, op := range g.operators {
			if emitted[op] {
				continue
			}
			ready := true
			for _, in := range op.Inputs() {
				if pred := in.Source(); pred != nil && !emitted[pred] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, op)
				emitted[op] = true
				progress = true
			}
		}
		if !progress {
			return false
		}
	}

	g.operators = sorted
	g.sorted = true
	logger.Log.Debug().Int("operators", len(sorted)).Msg("graph: topo_sort succeeded")
	return true
}

// ShapeInfer runs every operator's InferShape in topological order,
// updating each output tensor whose inferred shape differs from its
// recorded shape. Requires a successful TopoSort; shape-inference
// failure for any operator is a structural assertion (§7), since it
// means the graph was ill-formed.
func (g *Graph) ShapeInfer() error {
	if !g.sorted {
		return fmt.Errorf("graph: ShapeInfer requires a successful TopoSort first")
	}
	for _, op := range g.operators {
		shapes, ok := op.InferShape()
		if !ok {
			panic(fmt.Sprintf("graph: shape inference failed for %s", op.String()))
		}
		outputs := op.Outputs()
		if len(shapes) != len(outputs) {
			panic(fmt.Sprintf("graph: operator %s returned %d shapes for %d outputs", op.String(), len(shapes), len(outputs)))
		}
		for i, s := range shapes {
			if !s.Equal(outputs[i].Shape()) {
				outputs[i].SetShape(s)
			}
		}
	}
	return nil
}

// DataMalloc plans an offset for every tensor via the Allocator, then
// resolves those offsets against a concrete pointer acquired from the
// Runtime. Requires a successful TopoSort.
func (g *Graph) DataMalloc() error {
	if !g.sorted {
		return fmt.Errorf("graph: DataMalloc requires a successful TopoSort first")
	}

	offsets := make([]int, len(g.tensors))
	for i, t := range g.tensors {
		offsets[i] = g.alloc.Alloc(t.Bytes())
	}

	ptr, err := g.alloc.GetPtr()
	if err != nil {
		return fmt.Errorf("graph: DataMalloc: %w", err)
	}

	for i, t := range g.tensors {
		t.SetDataBlob(offsets[i], ptr.Offset(offsets[i]))
	}
	logger.Log.Debug().Int("tensors", len(g.tensors)).Int("peak", g.alloc.Peak()).Msg("graph: dataMalloc complete")
	return nil
}

// CheckValid validates every structural invariant of §4.D: no
// disconnected tensors, every linkage member still belongs to this
// graph, and unique Fuids. It returns the first violation found, if
// any.
func (g *Graph) CheckValid() error {
	opSet := make(map[Operator]bool, len(g.operators))
	for _, op := range g.operators {
		opSet[op] = true
	}
	tensorSet := make(map[*Tensor]bool, len(g.tensors))
	for _, t := range g.tensors {
		tensorSet[t] = true
	}

	for _, t := range g.tensors {
		if t.Source() == nil && len(t.Targets()) == 0 {
			return fmt.Errorf("graph: tensor %d has no source and no targets", t.Fuid())
		}
		if src := t.Source(); src != nil && !opSet[src] {
			return fmt.Errorf("graph: tensor %d's source is not in the operator list", t.Fuid())
		}
		for _, target := range t.Targets() {
			if !opSet[target] {
				return fmt.Errorf("graph: tensor %d has a target not in the operator list", t.Fuid())
			}
		}
	}

	for _, op := range g.operators {
		for _, in := range op.Inputs() {
			if !tensorSet[in] {
				return fmt.Errorf("graph: operator %d has an input not in the tensor list", op.Guid())
			}
		}
		for _, out := range op.Outputs() {
			if !tensorSet[out] {
				return fmt.Errorf("graph: operator %d has an output not in the tensor list", op.Guid())
			}
		}
		for _, pred := range op.Predecessors() {
			if !opSet[pred] {
				return fmt.Errorf("graph: operator %d has a predecessor not in the operator list", op.Guid())
			}
		}
		for _, succ := range op.Successors() {
			if !opSet[succ] {
				return fmt.Errorf("graph: operator %d has a successor not in the operator list", op.Guid())
			}
		}
	}

	seen := make(map[ids.Fuid]bool, len(g.tensors))
	for _, t := range g.tensors {
		if seen[t.Fuid()] {
			return fmt.Errorf("graph: duplicate Fuid %d", t.Fuid())
		}
		seen[t.Fuid()] = true
	}

	return nil
}

// Valid is the boolean form of CheckValid, matching the caller-facing
// API of §6.
func (g *Graph) Valid() bool {
	return g.CheckValid() == nil
}

// String renders the Graph the way the original implementation's
// toString does: one line per tensor, then one line per operator with
// its predecessor/successor Guids.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("Graph Tensors:\n")
	for _, t := range g.tensors {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	b.WriteString("Graph operators:\n")
	for _, op := range g.operators {
		preds := guidsOf(op.Predecessors())
		succs := guidsOf(op.Successors())
		fmt.Fprintf(&b, "OP %d, pred %s, succ %s, %s\n", op.Guid(), preds, succs, op.String())
	}
	return b.String()
}

func guidsOf(ops []Operator) string {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = fmt.Sprintf("%d", op.Guid())
	}
	return "[" + strings.Join(ids, ",") + "]"
}
