package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacemaninhust/TinyInfiniTensor/config"
	"github.com/spacemaninhust/TinyInfiniTensor/core/alloc"
	"github.com/spacemaninhust/TinyInfiniTensor/runtime"
)

type fakePointer struct {
	arena  []byte
	offset int
}

func (p *fakePointer) Offset(n int) runtime.Pointer {
	return &fakePointer{arena: p.arena, offset: p.offset + n}
}

type fakeRuntime struct {
	allocs int
	last   int
}

func (r *fakeRuntime) Alloc(bytes int) (runtime.Pointer, error) {
	r.allocs++
	r.last = bytes
	return &fakePointer{arena: make([]byte, bytes)}, nil
}

func (r *fakeRuntime) Dealloc(p runtime.Pointer) {}

func (r *fakeRuntime) String() string { return "fake" }

func noAlignConfig() config.Allocator {
	return config.Allocator{Alignment: 1}
}

// S1 — alloc/alloc/alloc/free/free coalesces the two freed ranges into
// a single free block [0, 24), and peak tracks the high-water mark.
func TestAllocator_S1_CoalescesAdjacentFrees(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, noAlignConfig())

	off1 := a.Alloc(8)
	off2 := a.Alloc(16)
	off3 := a.Alloc(8)
	require.Equal(t, 0, off1)
	require.Equal(t, 8, off2)
	require.Equal(t, 24, off3)
	require.Equal(t, 32, a.Peak())

	a.Free(off2, 16)
	a.Free(off1, 8)

	free := a.FreeList()
	require.Len(t, free, 1)
	assert.Equal(t, 0, free[0].Offset)
	assert.Equal(t, 24, free[0].Size)
	assert.Equal(t, 32, a.Peak(), "peak must never shrink on Free")
}

// S2 — a subsequent alloc reuses the coalesced block's offset (first
// block of any size) rather than growing the arena, and peak is
// unaffected.
func TestAllocator_S2_ReusesCoalescedBlock(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, noAlignConfig())

	off1 := a.Alloc(8)
	off2 := a.Alloc(16)
	a.Alloc(8)
	a.Free(off2, 16)
	a.Free(off1, 8)

	reused := a.Alloc(4)
	assert.Equal(t, 0, reused)
	assert.Empty(t, a.FreeList())
	assert.Equal(t, 32, a.Peak())
	assert.Equal(t, 32, a.Used())
}

func TestAllocator_AlignedSize(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, config.Allocator{Alignment: 8})
	assert.Equal(t, 0, a.AlignedSize(0))
	assert.Equal(t, 0, a.AlignedSize(-4))
	assert.Equal(t, 8, a.AlignedSize(1))
	assert.Equal(t, 8, a.AlignedSize(8))
	assert.Equal(t, 16, a.AlignedSize(9))
}

func TestAllocator_DefaultAlignmentWhenUnset(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, config.Allocator{})
	assert.Equal(t, config.DefaultAlignment, a.Alignment())
}

func TestAllocator_FreeOverlapPanics(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, noAlignConfig())
	a.Alloc(16)
	a.Free(0, 8)
	assert.Panics(t, func() { a.Free(4, 8) })
}

func TestAllocator_PanicsAfterMaterialized(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, noAlignConfig())
	a.Alloc(8)
	_, err := a.GetPtr()
	require.NoError(t, err)
	assert.Panics(t, func() { a.Alloc(4) })
	assert.Panics(t, func() { a.Free(0, 8) })
}

func TestAllocator_GetPtrIsIdempotent(t *testing.T) {
	rt := &fakeRuntime{}
	a := alloc.New(rt, noAlignConfig())
	a.Alloc(10)
	p1, err := a.GetPtr()
	require.NoError(t, err)
	p2, err := a.GetPtr()
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, rt.allocs)
	assert.Equal(t, a.Peak(), rt.last)
}

func TestAllocator_String(t *testing.T) {
	a := alloc.New(&fakeRuntime{}, noAlignConfig())
	a.Alloc(12)
	assert.Equal(t, "Used memory: 12, peak memory: 12", a.String())
}
