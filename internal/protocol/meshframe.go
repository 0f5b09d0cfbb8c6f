package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MeshFrameMagic prefixes every binary mesh frame.
const MeshFrameMagic = "MSH1"

// MeshFrameHeaderLen is magic, three int32 chunk coordinates, and the
// vertex and index counts.
const MeshFrameHeaderLen = 4 + 3*4 + 2*4

var ErrBadMeshFrame = errors.New("bad mesh frame")

// MeshFrame is one chunk mesh on the wire. All integers are little-endian.
type MeshFrame struct {
	X, Y, Z  int32
	Vertices []uint32
	Indices  []uint32
}

func EncodeMeshFrame(f MeshFrame) []byte {
	b := make([]byte, MeshFrameHeaderLen+4*(len(f.Vertices)+len(f.Indices)))
	copy(b, MeshFrameMagic)
	le := binary.LittleEndian
	le.PutUint32(b[4:], uint32(f.X))
	le.PutUint32(b[8:], uint32(f.Y))
	le.PutUint32(b[12:], uint32(f.Z))
	le.PutUint32(b[16:], uint32(len(f.Vertices)))
	le.PutUint32(b[20:], uint32(len(f.Indices)))
	off := MeshFrameHeaderLen
	for _, v := range f.Vertices {
		le.PutUint32(b[off:], v)
		off += 4
	}
	for _, i := range f.Indices {
		le.PutUint32(b[off:], i)
		off += 4
	}
	return b
}

func DecodeMeshFrame(b []byte) (MeshFrame, error) {
	var f MeshFrame
	if len(b) < MeshFrameHeaderLen || string(b[:4]) != MeshFrameMagic {
		return f, fmt.Errorf("%w: missing header", ErrBadMeshFrame)
	}
	le := binary.LittleEndian
	f.X = int32(le.Uint32(b[4:]))
	f.Y = int32(le.Uint32(b[8:]))
	f.Z = int32(le.Uint32(b[12:]))
	nv := int(le.Uint32(b[16:]))
	ni := int(le.Uint32(b[20:]))
	if want := MeshFrameHeaderLen + 4*(nv+ni); nv < 0 || ni < 0 || len(b) != want {
		return f, fmt.Errorf("%w: %d bytes for %d vertices and %d indices", ErrBadMeshFrame, len(b), nv, ni)
	}
	off := MeshFrameHeaderLen
	f.Vertices = make([]uint32, nv)
	for i := range f.Vertices {
		f.Vertices[i] = le.Uint32(b[off:])
		off += 4
	}
	f.Indices = make([]uint32, ni)
	for i := range f.Indices {
		f.Indices[i] = le.Uint32(b[off:])
		off += 4
	}
	return f, nil
}
