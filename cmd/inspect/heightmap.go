package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/terrain/store"
)

// Heightmap is a top-down sample of surface heights. Rows run along Z,
// columns along X.
type Heightmap struct {
	MinX, MinZ int
	Step       int
	Heights    [][]int
	Known      [][]bool
	Lo, Hi     int
}

// BuildHeightmap samples every step-th column of the chunks in s whose
// chunk Y lies in [minCY, maxCY].
func BuildHeightmap(s *store.ChunkStore, minCY, maxCY, step int) Heightmap {
	if step <= 0 {
		step = 1
	}
	hm := Heightmap{Step: step}
	pos := s.Positions()
	if len(pos) == 0 {
		return hm
	}
	lo, hi := pos[0], pos[0]
	for _, p := range pos {
		lo = mathx.V3(min(lo.X, p.X), 0, min(lo.Z, p.Z))
		hi = mathx.V3(max(hi.X, p.X), 0, max(hi.Z, p.Z))
	}
	hm.MinX, hm.MinZ = lo.X*voxel.Size, lo.Z*voxel.Size
	width := (hi.X - lo.X + 1) * voxel.Size / step
	depth := (hi.Z - lo.Z + 1) * voxel.Size / step

	first := true
	hm.Heights = make([][]int, depth)
	hm.Known = make([][]bool, depth)
	for r := 0; r < depth; r++ {
		hm.Heights[r] = make([]int, width)
		hm.Known[r] = make([]bool, width)
		for c := 0; c < width; c++ {
			h, ok := s.SurfaceHeight(hm.MinX+c*step, hm.MinZ+r*step, minCY, maxCY)
			if !ok {
				continue
			}
			hm.Heights[r][c], hm.Known[r][c] = h, true
			if first || h < hm.Lo {
				hm.Lo = h
			}
			if first || h > hm.Hi {
				hm.Hi = h
			}
			first = false
		}
	}
	return hm
}

var bandColors = []*color.Color{
	color.New(color.FgBlue),
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgRed),
	color.New(color.FgWhite, color.Bold),
}

const glyphs = "0123456789"

// Render prints one glyph per sample: the height band digit, colored by band.
func (hm Heightmap) Render(out io.Writer) {
	span := hm.Hi - hm.Lo + 1
	for r := range hm.Heights {
		var b strings.Builder
		for c, h := range hm.Heights[r] {
			if !hm.Known[r][c] {
				b.WriteByte(' ')
				continue
			}
			band := (h - hm.Lo) * len(glyphs) / span
			g := string(glyphs[band])
			b.WriteString(bandColors[band*len(bandColors)/len(glyphs)].Sprint(g))
		}
		fmt.Fprintln(out, b.String())
	}
	fmt.Fprintf(out, "x from %d, z from %d, step %d; heights %d..%d\n", hm.MinX, hm.MinZ, hm.Step, hm.Lo, hm.Hi)
}
