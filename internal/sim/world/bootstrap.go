package world

import (
	"fmt"
	"time"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

// Bootstrap queues generation for the cube of chunks within the generate
// radius and meshing within the mesh radius. Chunks already stored (or
// meshes already published) are skipped, so it is safe after a resume.
func (w *World) Bootstrap(now time.Time) (genQueued, meshQueued int, err error) {
	mathx.Cube(w.cfg.GenerateRadius, func(p mathx.Vec3i) {
		if err != nil || w.chunks.Has(p) {
			return
		}
		var ok bool
		if ok, err = w.genSched.Enqueue(p, now); ok {
			genQueued++
		}
	})
	if err != nil {
		return genQueued, meshQueued, fmt.Errorf("bootstrap generate: %w", err)
	}
	mathx.Cube(w.cfg.MeshRadius, func(p mathx.Vec3i) {
		if err != nil {
			return
		}
		if _, done := w.meshes.Get(p); done {
			return
		}
		var ok bool
		if ok, err = w.meshSched.Enqueue(p, now); ok {
			meshQueued++
		}
	})
	if err != nil {
		return genQueued, meshQueued, fmt.Errorf("bootstrap mesh: %w", err)
	}
	w.logger.Printf("bootstrap: queued %d chunks for generation, %d for meshing", genQueued, meshQueued)
	return genQueued, meshQueued, nil
}

// Request queues a chunk for meshing, along with generation for it and any
// face neighbor that is not stored yet, since meshing reads all of them.
func (w *World) Request(pos mathx.Vec3i, now time.Time) error {
	for _, off := range store.NeighborOffsets {
		p := pos.Add(off)
		if w.chunks.Has(p) {
			continue
		}
		if _, err := w.genSched.Enqueue(p, now); err != nil {
			return fmt.Errorf("request %v: generate %v: %w", pos, p, err)
		}
	}
	if _, err := w.meshSched.Enqueue(pos, now); err != nil {
		return fmt.Errorf("request %v: mesh: %w", pos, err)
	}
	return nil
}

// Restore loads previously persisted chunks and meshes before the loop starts.
func (w *World) Restore(chunks []*store.Chunk, meshes []*mesh.Mesh) {
	for _, ch := range chunks {
		w.chunks.Put(ch)
	}
	for _, m := range meshes {
		w.meshes.Publish(m)
	}
}
