package voxel

// PackedLen is the byte length of a packed buffer: 12 bits per block.
const PackedLen = Volume * 12 / 8

// Packed stores two block ids in every three bytes. For an even index i the
// id is byte b (high 8 bits) followed by the top nibble of b+1; for an odd
// index it is the bottom nibble of b followed by byte b+1, where b = i*12/8.
type Packed struct {
	data []byte
}

func NewPacked() *Packed {
	return &Packed{data: make([]byte, PackedLen)}
}

func (p *Packed) Get(i int) uint16 {
	b := i * 12 / 8
	if i%2 == 0 {
		return uint16(p.data[b])<<4 | uint16(p.data[b+1]>>4)
	}
	return uint16(p.data[b]&0x0F)<<8 | uint16(p.data[b+1])
}

func (p *Packed) Set(i int, id uint16) {
	id &= MaxPackedID
	b := i * 12 / 8
	if i%2 == 0 {
		p.data[b] = byte(id >> 4)
		p.data[b+1] = p.data[b+1]&0x0F | byte(id&0x0F)<<4
		return
	}
	p.data[b] = p.data[b]&0xF0 | byte(id>>8)
	p.data[b+1] = byte(id)
}

func (p *Packed) Len() int           { return Volume }
func (p *Packed) Encoding() Encoding { return EncodingPacked }
func (p *Packed) Bytes() []byte      { return p.data }

func (p *Packed) Clone() Buffer {
	c := &Packed{data: make([]byte, len(p.data))}
	copy(c.data, p.data)
	return c
}
