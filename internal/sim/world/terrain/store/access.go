package store

import (
	"sort"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
)

func (s *ChunkStore) Get(pos mathx.Vec3i) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[pos]
	return ch, ok
}

func (s *ChunkStore) Has(pos mathx.Vec3i) bool {
	_, ok := s.Get(pos)
	return ok
}

// Put stores ch, overwriting any previous entry at its position. Buffers in
// another encoding are converted first.
func (s *ChunkStore) Put(ch *Chunk) {
	if ch.Blocks.Encoding() != s.enc {
		ch = &Chunk{Pos: ch.Pos, Blocks: voxel.Convert(ch.Blocks, s.enc)}
	}
	s.mu.Lock()
	s.chunks[ch.Pos] = ch
	s.mu.Unlock()
}

func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *ChunkStore) Positions() []mathx.Vec3i {
	s.mu.RLock()
	keys := make([]mathx.Vec3i, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Each calls fn for every chunk in position order until fn returns false.
func (s *ChunkStore) Each(fn func(*Chunk) bool) {
	for _, pos := range s.Positions() {
		ch, ok := s.Get(pos)
		if !ok {
			continue
		}
		if !fn(ch) {
			return
		}
	}
}

// BlockAt resolves a world block coordinate. ok is false when the owning
// chunk is not stored.
func (s *ChunkStore) BlockAt(p mathx.Vec3i) (uint16, bool) {
	cpos, local := mathx.ChunkOf(p, voxel.Size)
	ch, ok := s.Get(cpos)
	if !ok {
		return 0, false
	}
	return ch.Get(local.X, local.Y, local.Z), true
}

// SurfaceHeight returns the highest non-air world Y in the column (wx, wz)
// across the given chunk Y range.
func (s *ChunkStore) SurfaceHeight(wx, wz, minCY, maxCY int) (int, bool) {
	for cy := maxCY; cy >= minCY; cy-- {
		cpos, local := mathx.ChunkOf(mathx.V3(wx, cy*voxel.Size, wz), voxel.Size)
		ch, ok := s.Get(cpos)
		if !ok {
			continue
		}
		for y := voxel.Size - 1; y >= 0; y-- {
			if ch.Get(local.X, y, local.Z) != 0 {
				return cy*voxel.Size + y, true
			}
		}
	}
	return 0, false
}
