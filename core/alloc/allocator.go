// Package alloc implements the offset allocator: it plans byte offsets
// for every tensor inside one contiguous arena, using a deterministic
// free list (lowest-offset block taken, whatever its size) with
// coalescing, and later resolves
// those offsets against a concrete pointer acquired from a Runtime.
package alloc

import (
	"fmt"
	"sort"

	"github.com/spacemaninhust/TinyInfiniTensor/config"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/logger"
	"github.com/spacemaninhust/TinyInfiniTensor/runtime"
)

// FreeBlock is one entry of the allocator's free list: a byte range
// [Offset, Offset+Size) that is not currently in use.
type FreeBlock struct {
	Offset int
	Size   int
}

// Allocator plans offsets within a single arena. It accepts Alloc/Free
// calls while the arena is unmaterialized (GetPtr not yet called); after
// that, planning calls are a programming error.
type Allocator struct {
	rt        runtime.Runtime
	alignment int

	used int
	peak int
	free []FreeBlock // ordered by Offset, no two entries adjacent or overlapping

	ptr runtime.Pointer
}

// New constructs an Allocator bound to rt, using cfg for tuning. A zero
// Alignment falls back to config.DefaultAlignment.
func New(rt runtime.Runtime, cfg config.Allocator) *Allocator {
	alignment := cfg.Alignment
	if alignment <= 0 {
		alignment = config.DefaultAlignment
	}
	return &Allocator{rt: rt, alignment: alignment}
}

// AlignedSize rounds size up to a multiple of the allocator's alignment.
func (a *Allocator) AlignedSize(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + a.alignment - 1) / a.alignment * a.alignment
}

// Alloc reserves size bytes and returns their offset within the arena.
// It searches the free list in offset order and takes the first block
// found, regardless of how well it fits the request; if no free block
// exists, it extends the arena's high-water mark. Panics if the arena
// has already been materialized via GetPtr.
func (a *Allocator) Alloc(size int) int {
	if a.ptr != nil {
		panic("alloc: Alloc called after the arena was materialized")
	}
	aligned := a.AlignedSize(size)

	if len(a.free) > 0 {
		block := a.free[0]
		a.free = a.free[1:]
		return block.Offset
	}

	offset := a.used
	a.used += aligned
	if a.used > a.peak {
		a.peak = a.used
	}
	return offset
}

// Free returns the range [offset, offset+size) to the free list,
// coalescing it with any physically adjacent neighbor. Panics if the
// arena has already been materialized, or if the freed range overlaps
// an existing free-list entry.
func (a *Allocator) Free(offset, size int) {
	if a.ptr != nil {
		panic("alloc: Free called after the arena was materialized")
	}
	aligned := a.AlignedSize(size)

	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= offset })
	if idx > 0 {
		prev := a.free[idx-1]
		if offset < prev.Offset+prev.Size {
			panic(fmt.Sprintf("alloc: Free(%d, %d) overlaps free block [%d, %d)", offset, aligned, prev.Offset, prev.Offset+prev.Size))
		}
	}
	if idx < len(a.free) {
		next := a.free[idx]
		if offset+aligned > next.Offset {
			panic(fmt.Sprintf("alloc: Free(%d, %d) overlaps free block [%d, %d)", offset, aligned, next.Offset, next.Offset+next.Size))
		}
	}

	merged := FreeBlock{Offset: offset, Size: aligned}

	// Coalesce with the lower neighbor.
	if idx > 0 && a.free[idx-1].Offset+a.free[idx-1].Size == merged.Offset {
		lower := a.free[idx-1]
		merged = FreeBlock{Offset: min(lower.Offset, merged.Offset), Size: lower.Size + merged.Size}
		a.free = append(a.free[:idx-1], a.free[idx:]...)
		idx--
	}
	// Coalesce with the upper neighbor.
	if idx < len(a.free) && merged.Offset+merged.Size == a.free[idx].Offset {
		upper := a.free[idx]
		merged = FreeBlock{Offset: merged.Offset, Size: merged.Size + upper.Size}
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	}

	a.free = append(a.free, FreeBlock{})
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = merged
}

// FreeList returns a copy of the current free list, ordered by offset.
func (a *Allocator) FreeList() []FreeBlock {
	out := make([]FreeBlock, len(a.free))
	copy(out, a.free)
	return out
}

// Used returns the current high-water mark of allocated (not
// necessarily live) bytes.
func (a *Allocator) Used() int { return a.used }

// Peak returns the maximum Used ever observed.
func (a *Allocator) Peak() int { return a.peak }

// Alignment returns the allocator's byte alignment.
func (a *Allocator) Alignment() int { return a.alignment }

// GetPtr materializes the arena on first call, asking the Runtime for
// exactly Peak bytes, and returns the same pointer on every subsequent
// call.
func (a *Allocator) GetPtr() (runtime.Pointer, error) {
	if a.ptr != nil {
		return a.ptr, nil
	}
	ptr, err := a.rt.Alloc(a.peak)
	if err != nil {
		return nil, fmt.Errorf("alloc: acquiring %d bytes from runtime %s: %w", a.peak, a.rt.String(), err)
	}
	a.ptr = ptr
	logger.Log.Debug().Int("peak", a.peak).Str("runtime", a.rt.String()).Msg("alloc: arena materialized")
	return a.ptr, nil
}

// String renders a one-line used/peak summary, mirroring the original
// implementation's Allocator::info().
func (a *Allocator) String() string {
	return fmt.Sprintf("Used memory: %d, peak memory: %d", a.used, a.peak)
}

