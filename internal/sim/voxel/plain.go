package voxel

// Plain keeps one uint16 per block. It trades memory for simpler addressing.
type Plain struct {
	ids []uint16
}

func NewPlain() *Plain {
	return &Plain{ids: make([]uint16, Volume)}
}

func (p *Plain) Get(i int) uint16     { return p.ids[i] }
func (p *Plain) Set(i int, id uint16) { p.ids[i] = id }
func (p *Plain) Len() int             { return Volume }
func (p *Plain) Encoding() Encoding   { return EncodingPlain }

func (p *Plain) Bytes() []byte {
	out := make([]byte, 2*len(p.ids))
	for i, id := range p.ids {
		out[2*i] = byte(id)
		out[2*i+1] = byte(id >> 8)
	}
	return out
}

func (p *Plain) Clone() Buffer {
	c := NewPlain()
	copy(c.ids, p.ids)
	return c
}
