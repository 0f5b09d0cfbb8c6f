package world

import (
	"errors"

	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

// ErrUnauthorizedTick is returned when anything but the world's own
// driver tries to advance it.
var ErrUnauthorizedTick = errors.New("tick rejected: caller is not the world scheduler")

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// ChunkSink persists generated chunks and published meshes. Calls happen on
// the tick goroutine and must not block.
type ChunkSink interface {
	SaveChunk(ch *store.Chunk)
	SaveMesh(m *mesh.Mesh)
}

type TickLogEntry struct {
	Tick      uint64  `json:"tick"`
	TickRate  float64 `json:"tickrate"`
	StepMS    float64 `json:"step_ms"`
	Generated int     `json:"generated"`
	Meshed    int     `json:"meshed"`
	Retries   int     `json:"retries"`
	GenQueue  int     `json:"gen_queue"`
	MeshQueue int     `json:"mesh_queue"`
}
