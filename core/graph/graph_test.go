package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemaninhust/TinyInfiniTensor/config"
	"github.com/spacemaninhust/TinyInfiniTensor/core/graph"
	"github.com/spacemaninhust/TinyInfiniTensor/core/types"
	"github.com/spacemaninhust/TinyInfiniTensor/runtime"
)

type fakePointer struct {
	arena  []byte
	offset int
}

func (p *fakePointer) Offset(n int) runtime.Pointer {
	return &fakePointer{arena: p.arena, offset: p.offset + n}
}

type fakeRuntime struct{}

func (r *fakeRuntime) Alloc(bytes int) (runtime.Pointer, error) {
	return &fakePointer{arena: make([]byte, bytes)}, nil
}

func (r *fakeRuntime) Dealloc(p runtime.Pointer) {}

func (r *fakeRuntime) String() string { return "fake" }

func newGraph() *graph.Graph {
	return graph.New(&fakeRuntime{}, config.Allocator{Alignment: 1})
}

// S6 — a small two-op pipeline sorts, infers shapes, and plans memory
// with every tensor bound to a distinct, correctly-sized offset.
func TestGraph_S6_FullPipeline(t *testing.T) {
	g := newGraph()

	a := g.NewTensor(types.NewShape(2, 3), types.DTFloat32)
	b := g.NewTensor(types.NewShape(3, 4), types.DTFloat32)
	c := g.NewTensor(types.NewShape(2, 4), types.DTFloat32)
	d := g.NewTensor(types.NewShape(4, 2), types.DTFloat32)
	e := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)

	g.NewMatMul(a, b, c, false, false)
	g.NewMatMul(c, d, e, false, false)

	require.True(t, g.TopoSort())
	ops := g.Operators()
	require.Len(t, ops, 2)
	assert.Equal(t, graph.OpMatMul, ops[0].Type())
	assert.Equal(t, graph.OpMatMul, ops[1].Type())

	require.NoError(t, g.ShapeInfer())
	assert.Equal(t, types.NewShape(2, 4), c.Shape())
	assert.Equal(t, types.NewShape(2, 2), e.Shape())

	require.NoError(t, g.DataMalloc())
	seen := map[int]bool{}
	for _, tn := range g.Tensors() {
		require.True(t, tn.HasData())
		assert.False(t, seen[tn.Offset()], "offsets must not overlap for live tensors")
		seen[tn.Offset()] = true
	}
	require.NoError(t, g.CheckValid())
}

func TestGraph_TopoSort_StableOrderAmongReady(t *testing.T) {
	g := newGraph()
	x := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	y := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	o1 := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	o2 := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)

	first := g.NewTranspose(x, o1, []int{1, 0})
	second := g.NewTranspose(y, o2, []int{1, 0})

	require.True(t, g.TopoSort())
	ops := g.Operators()
	require.Len(t, ops, 2)
	assert.Same(t, first, ops[0])
	assert.Same(t, second, ops[1])
}

func TestGraph_TopoSort_DetectsCycle(t *testing.T) {
	g := newGraph()
	x := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	y := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)

	t1 := g.NewTranspose(x, y, []int{1, 0})
	// Manufacture a cycle: t1's input becomes its own output.
	t1.ReplaceInput(x, y)

	assert.False(t, g.TopoSort())
}

func TestGraph_ShapeInfer_RequiresTopoSort(t *testing.T) {
	g := newGraph()
	a := g.NewTensor(types.NewShape(2, 3), types.DTFloat32)
	b := g.NewTensor(types.NewShape(3, 4), types.DTFloat32)
	c := g.NewTensor(types.NewShape(2, 4), types.DTFloat32)
	g.NewMatMul(a, b, c, false, false)

	err := g.ShapeInfer()
	assert.Error(t, err)
}

func TestGraph_CheckValid_RejectsOrphanTensor(t *testing.T) {
	g := newGraph()
	g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	assert.Error(t, g.CheckValid())
	assert.False(t, g.Valid())
}

func TestGraph_RemoveTensor(t *testing.T) {
	g := newGraph()
	a := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	require.Len(t, g.Tensors(), 1)
	g.RemoveTensor(a)
	assert.Empty(t, g.Tensors())
}

func TestGraph_AddTensor_RegistersDetachedTensor(t *testing.T) {
	g := newGraph()
	rt := g.Runtime()
	free := graph.NewDetachedTensor(rt, types.NewShape(2, 2), types.DTFloat32)

	added := g.AddTensor(free)
	assert.Same(t, free, added)
	assert.Contains(t, g.Tensors(), free)

	found, ok := g.GetTensor(free.Fuid())
	require.True(t, ok)
	assert.Same(t, free, found)
}

func TestGraph_AddTensor_PanicsOnRuntimeMismatch(t *testing.T) {
	g := newGraph()
	other := graph.NewDetachedTensor(&fakeRuntime{}, types.NewShape(2, 2), types.DTFloat32)
	assert.Panics(t, func() { g.AddTensor(other) })
}

func TestGraph_AddTensors_RegistersEachInOrder(t *testing.T) {
	g := newGraph()
	rt := g.Runtime()
	a := graph.NewDetachedTensor(rt, types.NewShape(2, 2), types.DTFloat32)
	b := graph.NewDetachedTensor(rt, types.NewShape(3, 3), types.DTFloat32)

	out := g.AddTensors([]*graph.Tensor{a, b})
	require.Len(t, out, 2)
	assert.Same(t, a, out[0])
	assert.Same(t, b, out[1])
	assert.NotEqual(t, a.Fuid(), b.Fuid())
}

func TestGraph_GetTensor(t *testing.T) {
	g := newGraph()
	a := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	found, ok := g.GetTensor(a.Fuid())
	require.True(t, ok)
	assert.Same(t, a, found)

	_, ok = g.GetTensor(a.Fuid() + 999)
	assert.False(t, ok)
}

func TestGraph_String_ListsTensorsAndOperators(t *testing.T) {
	g := newGraph()
	a := g.NewTensor(types.NewShape(2, 3), types.DTFloat32)
	b := g.NewTensor(types.NewShape(3, 4), types.DTFloat32)
	c := g.NewTensor(types.NewShape(2, 4), types.DTFloat32)
	g.NewMatMul(a, b, c, false, false)

	s := g.String()
	assert.Contains(t, s, "Graph Tensors:")
	assert.Contains(t, s, "Graph operators:")
	assert.Contains(t, s, "Matmul(")
}
