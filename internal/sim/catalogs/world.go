package catalogs

import (
	"encoding/json"

	"morphvox.dev/internal/sim/mathx"
)

// WorldShape bounds generation in chunk units around the origin.
type WorldShape struct {
	ChunkRange       int `json:"chunk_range"`
	ChunkHeightRange int `json:"chunk_height_range"`
	// ChunkBottomRange is a radius below the origin; its sign in the file is ignored.
	ChunkBottomRange int `json:"chunk_bottom_range"`
	RangeRender      int `json:"range_render"`
}

func DefaultWorldShape() WorldShape {
	return WorldShape{ChunkRange: 4, ChunkHeightRange: 4, ChunkBottomRange: 4, RangeRender: 12}
}

// Contains reports whether a chunk position lies inside the generated world.
func (w WorldShape) Contains(x, y, z int) bool {
	if x > w.ChunkRange || x < -w.ChunkRange || z > w.ChunkRange || z < -w.ChunkRange {
		return false
	}
	return y <= w.ChunkHeightRange && y >= -w.ChunkBottomRange
}

type genFile struct {
	ChunkRange        *int `json:"chunk_range"`
	ChunkHeightRange  *int `json:"chunk_height_range"`
	WorldHeightRender *int `json:"world_height_render"`
	WorldHeight       *int `json:"world_height"`
	ChunkBottomRange  *int `json:"chunk_bottom_range"`
	WorldBottomRender *int `json:"world_bottom_render"`
	WorldBottom       *int `json:"world_bottom"`
	RangeRender       *int `json:"range_render"`
}

func firstSet(vals ...*int) (int, bool) {
	for _, v := range vals {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

func parseWorldShape(raw []byte) (WorldShape, error) {
	var f genFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return WorldShape{}, err
	}
	w := DefaultWorldShape()
	if v, ok := firstSet(f.ChunkRange); ok {
		w.ChunkRange = mathx.AbsInt(v)
	}
	if v, ok := firstSet(f.ChunkHeightRange, f.WorldHeightRender, f.WorldHeight); ok {
		w.ChunkHeightRange = v
	}
	if v, ok := firstSet(f.ChunkBottomRange, f.WorldBottomRender, f.WorldBottom); ok {
		w.ChunkBottomRange = mathx.AbsInt(v)
	}
	if v, ok := firstSet(f.RangeRender); ok {
		w.RangeRender = v
	}
	return w, nil
}

const defaultGenJSON = `{
  "chunk_range": 4,
  "world_height": 4,
  "world_bottom": -4,
  "range_render": 12
}`
