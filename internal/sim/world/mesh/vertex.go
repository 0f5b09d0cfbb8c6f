package mesh

const (
	posBits   = 6
	faceBits  = 3
	blockBits = 7

	yShift     = posBits
	zShift     = 2 * posBits
	faceShift  = 3 * posBits
	blockShift = faceShift + faceBits
	uShift     = blockShift + blockBits
	vShift     = uShift + 1

	posMask   = 1<<posBits - 1
	faceMask  = 1<<faceBits - 1
	blockMask = 1<<blockBits - 1
)

// Vertex is the unpacked form of a 32-bit mesh vertex.
type Vertex struct {
	X, Y, Z uint8
	Face    Direction
	Block   uint8
	U, V    uint8
}

// PackVertex lays out x[0:6) y[6:12) z[12:18) face[18:21) block[21:28) u[28] v[29].
// Out-of-range fields are masked.
func PackVertex(v Vertex) uint32 {
	return uint32(v.X)&posMask |
		(uint32(v.Y)&posMask)<<yShift |
		(uint32(v.Z)&posMask)<<zShift |
		(uint32(v.Face)&faceMask)<<faceShift |
		(uint32(v.Block)&blockMask)<<blockShift |
		(uint32(v.U)&1)<<uShift |
		(uint32(v.V)&1)<<vShift
}

func UnpackVertex(w uint32) Vertex {
	return Vertex{
		X:     uint8(w & posMask),
		Y:     uint8(w >> yShift & posMask),
		Z:     uint8(w >> zShift & posMask),
		Face:  Direction(w >> faceShift & faceMask),
		Block: uint8(w >> blockShift & blockMask),
		U:     uint8(w >> uShift & 1),
		V:     uint8(w >> vShift & 1),
	}
}

type VertexField struct {
	Name  string `json:"name"`
	Shift int    `json:"shift"`
	Bits  int    `json:"bits"`
}

// VertexLayout describes the packed fields for consumers outside Go.
func VertexLayout() []VertexField {
	return []VertexField{
		{Name: "x", Shift: 0, Bits: posBits},
		{Name: "y", Shift: yShift, Bits: posBits},
		{Name: "z", Shift: zShift, Bits: posBits},
		{Name: "face", Shift: faceShift, Bits: faceBits},
		{Name: "block", Shift: blockShift, Bits: blockBits},
		{Name: "u", Shift: uShift, Bits: 1},
		{Name: "v", Shift: vShift, Bits: 1},
	}
}
