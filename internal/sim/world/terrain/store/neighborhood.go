package store

import (
	"fmt"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
)

// NeighborOffsets lists the chunks a mesher needs: the center followed by
// its six face neighbors.
var NeighborOffsets = [7]mathx.Vec3i{
	{X: 0, Y: 0, Z: 0},
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: 1},
}

// Neighborhood is a read-only view of a chunk and its face neighbors.
type Neighborhood struct {
	Center mathx.Vec3i
	chunks [7]*Chunk
}

// Neighborhood assembles the view around center. It fails unless all
// seven chunks are stored.
func (s *ChunkStore) Neighborhood(center mathx.Vec3i) (*Neighborhood, bool) {
	n := &Neighborhood{Center: center}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, off := range NeighborOffsets {
		ch, ok := s.chunks[center.Add(off)]
		if !ok {
			return nil, false
		}
		n.chunks[i] = ch
	}
	return n, true
}

func offsetSlot(off mathx.Vec3i) int {
	for i, o := range NeighborOffsets {
		if o == off {
			return i
		}
	}
	return -1
}

// Block returns the id at (x, y, z) relative to the center chunk origin.
// Each coordinate must lie in [-Size, 2*Size) and at most one may leave the
// center chunk.
func (n *Neighborhood) Block(x, y, z int) uint16 {
	off := mathx.V3(mathx.FloorDiv(x, voxel.Size), mathx.FloorDiv(y, voxel.Size), mathx.FloorDiv(z, voxel.Size))
	slot := offsetSlot(off)
	if slot < 0 {
		panic(fmt.Sprintf("store: neighborhood lookup (%d,%d,%d) outside face neighbors", x, y, z))
	}
	return n.chunks[slot].Get(mathx.Mod(x, voxel.Size), mathx.Mod(y, voxel.Size), mathx.Mod(z, voxel.Size))
}
