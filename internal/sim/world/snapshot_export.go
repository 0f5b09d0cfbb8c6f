package world

import (
	"fmt"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/terrain/store"
)

func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	d := w.catalogs.Digests
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		ChunkSize: voxel.Size,
		Encoding:  string(w.cfg.Encoding),
		Digests: map[string]string{
			"blocks":  d.Blocks,
			"palette": d.Palette,
			"world":   d.World,
			"noise":   d.Noise,
		},
		Chunks: w.chunks.ExportChunks(),
		Meshes: w.meshes.Export(),
	}
}

// ImportSnapshot loads chunks, meshes and the tick counter. It must run
// before the loop starts.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.ChunkSize != voxel.Size {
		return fmt.Errorf("snapshot chunk size %d, engine uses %d", s.ChunkSize, voxel.Size)
	}
	if s.Header.WorldID != "" && s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world id mismatch: have %s, snapshot %s", w.cfg.ID, s.Header.WorldID)
	}
	if want := w.catalogs.Digests.Palette; s.Digests["palette"] != "" && s.Digests["palette"] != want {
		w.logger.Printf("snapshot palette digest differs from loaded catalogs; block ids may not match")
	}
	imported, err := store.ImportChunks(w.cfg.Encoding, s.Chunks)
	if err != nil {
		return err
	}
	imported.Each(func(ch *store.Chunk) bool {
		w.chunks.Put(ch)
		return true
	})
	w.meshes.Import(s.Meshes)
	w.tick.Store(s.Header.Tick)
	return nil
}
