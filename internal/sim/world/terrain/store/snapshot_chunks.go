package store

import (
	"fmt"

	snapv1 "morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
)

// ExportChunks copies every stored chunk into snapshot form, in position order.
func (s *ChunkStore) ExportChunks() []snapv1.ChunkV1 {
	out := make([]snapv1.ChunkV1, 0, s.Len())
	s.Each(func(ch *Chunk) bool {
		raw := ch.Blocks.Bytes()
		data := make([]byte, len(raw))
		copy(data, raw)
		out = append(out, snapv1.ChunkV1{
			Pos:      ch.Pos.ToArray(),
			Encoding: string(ch.Blocks.Encoding()),
			Data:     data,
		})
		return true
	})
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks.
func ImportChunks(enc voxel.Encoding, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	s := NewChunkStore(enc)
	for _, c := range chunks {
		buf, err := voxel.Decode(voxel.Encoding(c.Encoding), c.Data)
		if err != nil {
			return nil, fmt.Errorf("snapshot chunk %v: %w", c.Pos, err)
		}
		s.Put(&Chunk{Pos: mathx.V3(c.Pos[0], c.Pos[1], c.Pos[2]), Blocks: buf})
	}
	return s, nil
}
