// Package gen fills chunks from the noise bank: a base plain layer, and
// mountains carved on top wherever the mountain mask is high enough.
package gen

import (
	"fmt"
	"math"

	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/noise"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/terrain/store"
)

const (
	mountainMaskThreshold = 0.135
	mountainSharpness     = 3.0
	mountainExponent      = 10
	mountainCutoff        = 0.5
	mountainSink          = 64
	dirtDepth             = 2
)

// Field is one named noise layer as the generator sees it.
type Field interface {
	Sample2D(x, y float64) float64
	BaseLevel() float64
	Amplitude() float64
}

type Blocks struct {
	Air   uint16
	Stone uint16
	Dirt  uint16
	Grass uint16
}

// BlocksFrom resolves the terrain block ids by name. Missing names map to air.
func BlocksFrom(reg *catalogs.Registry) Blocks {
	return Blocks{
		Air:   reg.Lookup("air"),
		Stone: reg.Lookup("stone"),
		Dirt:  reg.Lookup("dirt"),
		Grass: reg.Lookup("grass"),
	}
}

type Fields struct {
	Base           Field
	MountainMask   Field
	MountainHeight Field
}

func FieldsFrom(bank *noise.Bank) (Fields, error) {
	var f Fields
	for _, want := range []struct {
		name string
		dst  *Field
	}{
		{catalogs.LayerBase, &f.Base},
		{catalogs.LayerMountainMask, &f.MountainMask},
		{catalogs.LayerMountainHeight, &f.MountainHeight},
	} {
		l, ok := bank.Get(want.name)
		if !ok {
			return Fields{}, fmt.Errorf("noise bank: missing layer %q", want.name)
		}
		*want.dst = l
	}
	return f, nil
}

// Generator is stateless apart from its configuration and may be shared
// across workers.
type Generator struct {
	shape  catalogs.WorldShape
	fields Fields
	blocks Blocks
	enc    voxel.Encoding
}

func New(shape catalogs.WorldShape, fields Fields, blocks Blocks, enc voxel.Encoding) *Generator {
	return &Generator{shape: shape, fields: fields, blocks: blocks, enc: enc}
}

// Generate builds the chunk at pos. Positions outside the world shape come
// back all air without sampling any noise.
func (g *Generator) Generate(pos mathx.Vec3i) *store.Chunk {
	ch := store.NewChunk(pos, g.enc)
	if !g.shape.Contains(pos.X, pos.Y, pos.Z) {
		return ch
	}
	origin := mathx.ChunkOrigin(pos, voxel.Size)
	for lz := 0; lz < voxel.Size; lz++ {
		for lx := 0; lx < voxel.Size; lx++ {
			g.fillColumn(ch, origin, lx, lz)
		}
	}
	return ch
}

type column struct {
	mountainTop float64
	bandLow     float64
	mask        float64
	surface     int
}

func (g *Generator) sampleColumn(wx, wz int) column {
	x, z := float64(wx), float64(wz)

	mtn := g.fields.MountainHeight
	mtnBase := mtn.BaseLevel() - mountainSink
	c := column{
		mountainTop: mtnBase + math.Max(0, mtn.Sample2D(x, z)*mtn.Amplitude()),
		bandLow:     mtnBase - voxel.Size/2,
		mask:        g.fields.MountainMask.Sample2D(x, z),
	}
	base := g.fields.Base
	c.surface = int(math.Round(base.BaseLevel() + base.Sample2D(x, z)*base.Amplitude()))
	return c
}

func (g *Generator) fillColumn(ch *store.Chunk, origin mathx.Vec3i, lx, lz int) {
	col := g.sampleColumn(origin.X+lx, origin.Z+lz)
	for ly := 0; ly < voxel.Size; ly++ {
		if b := g.cell(col, origin.Y+ly); b != g.blocks.Air {
			ch.Set(lx, ly, lz, b)
		}
	}
}

// cell applies the layering rules in priority order; the first match wins.
func (g *Generator) cell(col column, wy int) uint16 {
	if wy < -voxel.Size {
		return g.blocks.Stone
	}
	b := g.blocks.Air
	y := float64(wy)
	if col.mask > mountainMaskThreshold && y >= col.bandLow && y <= col.mountainTop {
		if dy := col.mountainTop - y; dy > 0 {
			if math.Pow(dy/mountainSharpness, mountainExponent) > mountainCutoff {
				b = g.blocks.Stone
			}
		}
	}
	if b == g.blocks.Air && wy <= col.surface {
		switch {
		case wy == col.surface:
			b = g.blocks.Grass
		case wy >= col.surface-dirtDepth:
			b = g.blocks.Dirt
		default:
			b = g.blocks.Stone
		}
	}
	return b
}
