package world

import (
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/sched"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

// Generation needs no inputs beyond the position.
func (w *World) generationHandler() sched.Handler[struct{}, *store.Chunk] {
	return sched.Handler[struct{}, *store.Chunk]{
		Acquire: func(mathx.Vec3i) (struct{}, bool) { return struct{}{}, true },
		Run: func(pos mathx.Vec3i, _ struct{}) *store.Chunk {
			return w.gen.Generate(pos)
		},
		Complete: func(_ mathx.Vec3i, ch *store.Chunk) {
			w.chunks.Put(ch)
			w.generated++
			if w.sink != nil && w.cfg.PersistChunks {
				w.sink.SaveChunk(ch)
			}
		},
	}
}

// Meshing waits until the chunk and all six face neighbors are stored.
func (w *World) meshHandler() sched.Handler[*store.Neighborhood, *mesh.Mesh] {
	return sched.Handler[*store.Neighborhood, *mesh.Mesh]{
		Acquire: w.chunks.Neighborhood,
		Run: func(pos mathx.Vec3i, n *store.Neighborhood) *mesh.Mesh {
			return mesh.Build(pos, n, w.registry.IsMeshable)
		},
		Complete: func(_ mathx.Vec3i, m *mesh.Mesh) {
			w.meshes.Publish(m)
			w.meshed++
			if w.sink != nil && w.cfg.PersistChunks {
				w.sink.SaveMesh(m)
			}
		},
	}
}
