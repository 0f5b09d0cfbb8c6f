package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"morphvox.dev/internal/sim/mathx"
)

// Direction is a face direction; its value is the 3-bit face id in a vertex.
type Direction uint8

const (
	Left    Direction = iota // -X
	Right                    // +X
	Down                     // -Y
	Up                       // +Y
	Back                     // +Z
	Forward                  // -Z
)

var Directions = [6]Direction{Left, Right, Down, Up, Back, Forward}

var directionNames = [6]string{"left", "right", "down", "up", "back", "forward"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "invalid"
}

func (d Direction) Normal() mathx.Vec3i {
	switch d {
	case Left:
		return mathx.V3(-1, 0, 0)
	case Right:
		return mathx.V3(1, 0, 0)
	case Down:
		return mathx.V3(0, -1, 0)
	case Up:
		return mathx.V3(0, 1, 0)
	case Back:
		return mathx.V3(0, 0, 1)
	default:
		return mathx.V3(0, 0, -1)
	}
}

// NormalF is the float normal handed to renderers.
func (d Direction) NormalF() mgl32.Vec3 {
	n := d.Normal()
	return mgl32.Vec3{float32(n.X), float32(n.Y), float32(n.Z)}
}

// ReverseOrder marks directions whose corners are emitted back to front so
// every face winds counter-clockwise seen from outside.
func (d Direction) ReverseOrder() bool {
	return d == Up || d == Right || d == Forward
}

// cell maps a sweep coordinate to a local block position. axis runs along
// the normal; row and col span the cross-section.
func (d Direction) cell(axis, row, col int) mathx.Vec3i {
	switch d {
	case Left, Right:
		return mathx.V3(axis, row, col)
	case Down, Up:
		return mathx.V3(row, axis, col)
	default:
		return mathx.V3(row, col, axis)
	}
}

// planeAxes returns the in-plane unit vectors (u, v) of a face.
func (d Direction) planeAxes() (u, v mathx.Vec3i) {
	switch d {
	case Left, Right:
		return mathx.V3(0, 0, 1), mathx.V3(0, 1, 0)
	case Down, Up:
		return mathx.V3(1, 0, 0), mathx.V3(0, 0, 1)
	default:
		return mathx.V3(1, 0, 0), mathx.V3(0, 1, 0)
	}
}

// planeOffset is the shift from a block's min corner to the face plane.
func (d Direction) planeOffset() mathx.Vec3i {
	n := d.Normal()
	if n.X+n.Y+n.Z > 0 {
		return n
	}
	return mathx.Vec3i{}
}
