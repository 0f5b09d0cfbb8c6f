package store

import (
	"crypto/sha256"
	"sync"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
)

// Chunk is created all-air, filled once by the generator and treated as
// read-only after it is stored.
type Chunk struct {
	Pos    mathx.Vec3i
	Blocks voxel.Buffer
}

func NewChunk(pos mathx.Vec3i, enc voxel.Encoding) *Chunk {
	return &Chunk{Pos: pos, Blocks: voxel.New(enc)}
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks.Get(voxel.Index(x, y, z))
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	c.Blocks.Set(voxel.Index(x, y, z), b)
}

func (c *Chunk) Digest() [32]byte {
	return sha256.Sum256(c.Blocks.Bytes())
}

// ChunkStore maps chunk positions to chunks under a single RWMutex.
// Entries are replaced whole, never edited in place.
type ChunkStore struct {
	enc voxel.Encoding

	mu     sync.RWMutex
	chunks map[mathx.Vec3i]*Chunk
}

func NewChunkStore(enc voxel.Encoding) *ChunkStore {
	return &ChunkStore{
		enc:    enc,
		chunks: map[mathx.Vec3i]*Chunk{},
	}
}

func (s *ChunkStore) Encoding() voxel.Encoding { return s.enc }
