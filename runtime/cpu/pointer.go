package cpu

import "github.com/spacemaninhust/TinyInfiniTensor/runtime"

// Pointer is an offset view into a single in-process byte arena.
type Pointer struct {
	arena  []byte
	offset int
}

var _ runtime.Pointer = (*Pointer)(nil)

// Offset returns a new Pointer advanced by n bytes within the same arena.
func (p *Pointer) Offset(n int) runtime.Pointer {
	return &Pointer{arena: p.arena, offset: p.offset + n}
}

// Bytes returns the n-byte window starting at the pointer's offset. It
// aliases the arena: writes through the returned slice are visible to
// every other Pointer over the same arena.
func (p *Pointer) Bytes(n int) []byte {
	return p.arena[p.offset : p.offset+n]
}
