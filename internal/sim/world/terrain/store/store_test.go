package store

import (
	"testing"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
)

func fillNeighborhood(s *ChunkStore, center mathx.Vec3i) {
	for i, off := range NeighborOffsets {
		ch := NewChunk(center.Add(off), s.Encoding())
		// Tag every chunk with its slot so lookups can be traced back.
		ch.Set(0, 0, 0, uint16(10+i))
		ch.Set(voxel.Size-1, voxel.Size-1, voxel.Size-1, uint16(20+i))
		s.Put(ch)
	}
}

func TestNeighborhoodRequiresAllSeven(t *testing.T) {
	center := mathx.V3(2, -1, 3)
	for skip := range NeighborOffsets {
		s := NewChunkStore(voxel.EncodingPacked)
		for i, off := range NeighborOffsets {
			if i == skip {
				continue
			}
			s.Put(NewChunk(center.Add(off), voxel.EncodingPacked))
		}
		if _, ok := s.Neighborhood(center); ok {
			t.Fatalf("neighborhood assembled without slot %d", skip)
		}
	}

	s := NewChunkStore(voxel.EncodingPacked)
	fillNeighborhood(s, center)
	// Diagonal chunks are not needed.
	if _, ok := s.Neighborhood(center); !ok {
		t.Fatalf("expected complete neighborhood")
	}
}

func TestNeighborhoodBlockResolvesOwner(t *testing.T) {
	s := NewChunkStore(voxel.EncodingPlain)
	center := mathx.V3(0, 0, 0)
	fillNeighborhood(s, center)
	n, ok := s.Neighborhood(center)
	if !ok {
		t.Fatalf("neighborhood missing")
	}
	const S = voxel.Size
	cases := []struct {
		x, y, z int
		want    uint16
	}{
		{0, 0, 0, 10},
		{-1, S - 1, S - 1, 23},
		{S, 0, 0, 14},
		{0, -1 + S, 0, 0},
		{S - 1, -1, S - 1, 21},
		{0, S, 0, 12},
		{S - 1, S - 1, -1, 25},
		{0, 0, S, 16},
	}
	for _, tc := range cases {
		if got := n.Block(tc.x, tc.y, tc.z); got != tc.want {
			t.Fatalf("Block(%d,%d,%d) = %d want %d", tc.x, tc.y, tc.z, got, tc.want)
		}
	}
}

func TestNeighborhoodBlockPanicsOnDiagonal(t *testing.T) {
	s := NewChunkStore(voxel.EncodingPacked)
	fillNeighborhood(s, mathx.V3(0, 0, 0))
	n, _ := s.Neighborhood(mathx.V3(0, 0, 0))
	for _, c := range [][3]int{{-1, -1, 0}, {voxel.Size, 0, voxel.Size}, {2 * voxel.Size, 0, 0}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("Block(%v) did not panic", c)
				}
			}()
			n.Block(c[0], c[1], c[2])
		}()
	}
}

func TestPutOverwritesAndPositionsSorted(t *testing.T) {
	s := NewChunkStore(voxel.EncodingPacked)
	a := NewChunk(mathx.V3(0, 1, 0), voxel.EncodingPacked)
	b := NewChunk(mathx.V3(0, 0, 0), voxel.EncodingPacked)
	s.Put(a)
	s.Put(b)
	repl := NewChunk(mathx.V3(0, 1, 0), voxel.EncodingPlain)
	repl.Set(3, 3, 3, 7)
	s.Put(repl)

	if s.Len() != 2 {
		t.Fatalf("len = %d", s.Len())
	}
	got, _ := s.Get(mathx.V3(0, 1, 0))
	if got.Get(3, 3, 3) != 7 || got.Blocks.Encoding() != voxel.EncodingPacked {
		t.Fatalf("overwrite lost or not converted")
	}
	pos := s.Positions()
	if pos[0] != mathx.V3(0, 0, 0) || pos[1] != mathx.V3(0, 1, 0) {
		t.Fatalf("positions not sorted: %v", pos)
	}
	if id, ok := s.BlockAt(mathx.V3(3, 19, 3)); !ok || id != 7 {
		t.Fatalf("BlockAt = %d,%v", id, ok)
	}
	if h, ok := s.SurfaceHeight(3, 3, 0, 1); !ok || h != 19 {
		t.Fatalf("SurfaceHeight = %d,%v", h, ok)
	}
}
