// Package voxel holds the fixed-size block-id buffers that back a chunk.
//
// Two encodings exist: a 12-bit packed buffer (the on-disk and wire format)
// and a plain []uint16. Callers only see the Buffer interface.
package voxel

import "fmt"

const (
	Size   = 16
	Area   = Size * Size
	Volume = Size * Size * Size

	// MaxPackedID is the largest id representable in the packed encoding.
	MaxPackedID = 1<<12 - 1
)

type Encoding string

const (
	EncodingPacked Encoding = "packed"
	EncodingPlain  Encoding = "plain"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingPacked:
		return EncodingPacked, nil
	case EncodingPlain:
		return EncodingPlain, nil
	default:
		return "", fmt.Errorf("unknown voxel encoding %q", s)
	}
}

func InBounds(x, y, z int) bool {
	return x >= 0 && x < Size && y >= 0 && y < Size && z >= 0 && z < Size
}

// Index maps local coordinates to the linear XZY index. Out-of-range
// coordinates are a size mismatch upstream and panic.
func Index(x, y, z int) int {
	if !InBounds(x, y, z) {
		panic(fmt.Sprintf("voxel: local position (%d,%d,%d) outside chunk", x, y, z))
	}
	return x + z*Size + y*Area
}

// Coords is the inverse of Index.
func Coords(i int) (x, y, z int) {
	return i % Size, i / Area, (i / Size) % Size
}

type Buffer interface {
	Get(i int) uint16
	Set(i int, id uint16)
	Len() int
	Encoding() Encoding
	// Bytes returns the raw encoded form. Plain buffers are little-endian.
	Bytes() []byte
	Clone() Buffer
}

func New(enc Encoding) Buffer {
	if enc == EncodingPlain {
		return NewPlain()
	}
	return NewPacked()
}

func Decode(enc Encoding, b []byte) (Buffer, error) {
	switch enc {
	case EncodingPacked, "":
		if len(b) != PackedLen {
			return nil, fmt.Errorf("packed voxel buffer: want %d bytes, got %d", PackedLen, len(b))
		}
		p := &Packed{data: make([]byte, PackedLen)}
		copy(p.data, b)
		return p, nil
	case EncodingPlain:
		if len(b) != Volume*2 {
			return nil, fmt.Errorf("plain voxel buffer: want %d bytes, got %d", Volume*2, len(b))
		}
		p := NewPlain()
		for i := range p.ids {
			p.ids[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown voxel encoding %q", enc)
	}
}

// Convert re-encodes src into enc, returning src itself when it already matches.
func Convert(src Buffer, enc Encoding) Buffer {
	if src.Encoding() == enc {
		return src
	}
	dst := New(enc)
	for i := 0; i < Volume; i++ {
		if id := src.Get(i); id != 0 {
			dst.Set(i, id)
		}
	}
	return dst
}

// IsEmpty reports whether every cell is air.
func IsEmpty(b Buffer) bool {
	for i := 0; i < b.Len(); i++ {
		if b.Get(i) != 0 {
			return false
		}
	}
	return true
}
