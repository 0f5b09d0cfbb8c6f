// Package mesh turns a chunk neighborhood into packed face geometry and
// keeps the latest mesh per chunk.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
)

// BlockSource reads block ids relative to the meshed chunk's origin,
// reaching one block into each face neighbor.
type BlockSource interface {
	Block(x, y, z int) uint16
}

type Mesh struct {
	Pos      mathx.Vec3i
	Vertices []uint32
	Indices  []uint32
}

func (m *Mesh) Quads() int { return len(m.Vertices) / 4 }

func (m *Mesh) Empty() bool { return len(m.Vertices) == 0 }

// Valid checks the six-indices-per-quad invariant.
func (m *Mesh) Valid() bool {
	return len(m.Vertices)%4 == 0 && len(m.Indices) == len(m.Vertices)/4*6
}

// Origin is the chunk's world-space origin.
func (m *Mesh) Origin() mgl32.Vec3 {
	o := mathx.ChunkOrigin(m.Pos, voxel.Size)
	return mgl32.Vec3{float32(o.X), float32(o.Y), float32(o.Z)}
}

var (
	cornerUV         = [4][2]uint8{{1, 1}, {0, 1}, {0, 0}, {1, 0}}
	cornerUVReversed = [4][2]uint8{{1, 0}, {0, 0}, {0, 1}, {1, 1}}
	quadIndices      = [6]uint32{0, 1, 2, 0, 2, 3}
)

// Build emits one quad for every face between a meshable block of the
// center chunk and a non-meshable neighbor.
func Build(pos mathx.Vec3i, src BlockSource, meshable func(uint16) bool) *Mesh {
	m := &Mesh{Pos: pos}
	for _, d := range Directions {
		n := d.Normal()
		for axis := 0; axis < voxel.Size; axis++ {
			for row := 0; row < voxel.Size; row++ {
				for col := 0; col < voxel.Size; col++ {
					p := d.cell(axis, row, col)
					id := src.Block(p.X, p.Y, p.Z)
					if !meshable(id) {
						continue
					}
					air := p.Add(n)
					if meshable(src.Block(air.X, air.Y, air.Z)) {
						continue
					}
					m.pushQuad(p, d, id)
				}
			}
		}
	}
	return m
}

func (m *Mesh) pushQuad(p mathx.Vec3i, d Direction, id uint16) {
	base := uint32(len(m.Vertices))
	plane := p.Add(d.planeOffset())
	u, v := d.planeAxes()
	uvs := &cornerUV
	if d.ReverseOrder() {
		uvs = &cornerUVReversed
	}
	for _, uv := range uvs {
		c := plane.Add(u.Scale(int(uv[0]))).Add(v.Scale(int(uv[1])))
		m.Vertices = append(m.Vertices, PackVertex(Vertex{
			X:     uint8(c.X),
			Y:     uint8(c.Y),
			Z:     uint8(c.Z),
			Face:  d,
			Block: uint8(id),
			U:     uv[0],
			V:     uv[1],
		}))
	}
	for _, i := range quadIndices {
		m.Indices = append(m.Indices, base+i)
	}
}
