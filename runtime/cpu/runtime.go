// Package cpu provides a reference, in-process Runtime: a single byte
// arena backing every tensor the Allocator has planned, plus Execute,
// which can actually run a planned Graph's MatMul and Transpose nodes.
// It exists to give the core/alloc and core/graph contracts a concrete
// collaborator; nothing in core/ depends on it.
package cpu

import (
	"fmt"

	"github.com/spacemaninhust/TinyInfiniTensor/config"
	"github.com/spacemaninhust/TinyInfiniTensor/internal/logger"
	"github.com/spacemaninhust/TinyInfiniTensor/runtime"
)

// Runtime is a single-arena in-process Runtime. Its arena starts at
// cfg.ArenaHint bytes (if positive) and is grown to an Alloc request
// that is larger than it.
type Runtime struct {
	cfg   config.Runtime
	arena []byte
}

var _ runtime.Runtime = (*Runtime)(nil)

// New constructs a Runtime tuned by cfg.
func New(cfg config.Runtime) *Runtime {
	rt := &Runtime{cfg: cfg}
	if cfg.ArenaHint > 0 {
		rt.arena = make([]byte, cfg.ArenaHint)
	}
	return rt
}

// Alloc returns a Pointer to the start of the arena, growing it to bytes
// if it is not already at least that large. Only one live arena is ever
// handed out: core/alloc.Allocator calls this exactly once, after it has
// computed the peak high-water mark for the whole Graph.
func (rt *Runtime) Alloc(bytes int) (runtime.Pointer, error) {
	if bytes < 0 {
		return nil, fmt.Errorf("cpu: Alloc: negative size %d", bytes)
	}
	if len(rt.arena) < bytes {
		grown := make([]byte, bytes)
		copy(grown, rt.arena)
		rt.arena = grown
	}
	logger.Log.Debug().Int("bytes", bytes).Msg("cpu: arena ready")
	return &Pointer{arena: rt.arena, offset: 0}, nil
}

// Dealloc is a no-op: the Runtime owns one arena for its whole lifetime.
func (rt *Runtime) Dealloc(p runtime.Pointer) {}

func (rt *Runtime) String() string {
	return fmt.Sprintf("cpu.Runtime(arena=%d bytes)", len(rt.arena))
}
