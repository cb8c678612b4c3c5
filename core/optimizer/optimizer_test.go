package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemaninhust/TinyInfiniTensor/config"
	"github.com/spacemaninhust/TinyInfiniTensor/core/graph"
	"github.com/spacemaninhust/TinyInfiniTensor/core/optimizer"
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

// Run is a thin pass-through to Graph.Optimize: exercising it here
// guards against the facade and the method drifting apart.
func TestRun_DelegatesToGraphOptimize(t *testing.T) {
	g := newGraph()
	a := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	y := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)
	z := g.NewTensor(types.NewShape(2, 2), types.DTFloat32)

	g.NewTranspose(a, y, []int{1, 0})
	g.NewTranspose(y, z, []int{1, 0})

	rewrites := optimizer.Run(g)
	assert.Equal(t, 1, rewrites)
	require.Empty(t, g.Operators())
}

func TestRun_NoOpOnAlreadyOptimalGraph(t *testing.T) {
	g := newGraph()
	a := g.NewTensor(types.NewShape(2, 3), types.DTFloat32)
	b := g.NewTensor(types.NewShape(3, 4), types.DTFloat32)
	c := g.NewTensor(types.NewShape(2, 4), types.DTFloat32)
	g.NewMatMul(a, b, c, false, false)

	assert.Equal(t, 0, optimizer.Run(g))
}
