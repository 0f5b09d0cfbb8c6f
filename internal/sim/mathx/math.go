package mathx

import "fmt"

// Vec3i is an integer 3-vector. It keys chunks and addresses blocks.
type Vec3i struct {
	X int
	Y int
	Z int
}

func V3(x, y, z int) Vec3i { return Vec3i{X: x, Y: y, Z: z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3i) Scale(k int) Vec3i { return Vec3i{X: v.X * k, Y: v.Y * k, Z: v.Z * k} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// Less orders positions by Y, then Z, then X.
func (v Vec3i) Less(o Vec3i) bool {
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	if v.Z != o.Z {
		return v.Z < o.Z
	}
	return v.X < o.X
}

// ChunkOrigin returns the world block coordinate of the chunk's (0,0,0) cell.
func ChunkOrigin(pos Vec3i, size int) Vec3i { return pos.Scale(size) }

// ChunkOf splits a world block coordinate into chunk position and local coordinate.
func ChunkOf(block Vec3i, size int) (chunk, local Vec3i) {
	chunk = Vec3i{X: FloorDiv(block.X, size), Y: FloorDiv(block.Y, size), Z: FloorDiv(block.Z, size)}
	local = Vec3i{X: Mod(block.X, size), Y: Mod(block.Y, size), Z: Mod(block.Z, size)}
	return chunk, local
}

// Cube enumerates every position in [-r, r]³ in Y, Z, X order.
func Cube(r int, fn func(Vec3i)) {
	if r < 0 {
		return
	}
	for y := -r; y <= r; y++ {
		for z := -r; z <= r; z++ {
			for x := -r; x <= r; x++ {
				fn(Vec3i{X: x, Y: y, Z: z})
			}
		}
	}
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
