// Package noise implements seeded 2D Perlin and value noise with optional
// fractal Brownian motion, grouped into a named bank of layers.
package noise

import (
	"fmt"
	"math"
	"sort"
)

type Type int

const (
	Perlin Type = iota
	Value
)

func (t Type) String() string {
	if t == Value {
		return "Value"
	}
	return "Perlin"
}

// ParseType maps a config name to a noise type. Unknown names fall back to Perlin.
func ParseType(s string) Type {
	switch s {
	case "Value":
		return Value
	default:
		return Perlin
	}
}

// Fractal holds FBM parameters. A layer without them samples a single octave.
type Fractal struct {
	Octaves    int
	Lacunarity float64
	Gain       float64
}

type Params struct {
	Name      string
	Seed      uint64
	Frequency float64
	Type      Type
	Fractal   *Fractal

	// Terrain shaping, in blocks.
	BaseLevel float64
	Amplitude float64
}

const (
	DefaultFrequency = 0.01
	minFrequency     = 1e-6
	seedMix          = 0x9E3779B97F4A7C15
)

// Layer is immutable once built and safe for concurrent sampling.
type Layer struct {
	params Params
	p      [512]uint8
}

func NewLayer(params Params) *Layer {
	if params.Frequency < minFrequency {
		params.Frequency = minFrequency
	}
	if params.Fractal != nil {
		f := *params.Fractal
		params.Fractal = &f
	}
	l := &Layer{params: params}
	l.p = permutation(params.Seed)
	return l
}

func (l *Layer) Name() string       { return l.params.Name }
func (l *Layer) Params() Params     { return l.params }
func (l *Layer) BaseLevel() float64 { return l.params.BaseLevel }
func (l *Layer) Amplitude() float64 { return l.params.Amplitude }

// Sample2D returns noise at (x, y), approximately in [-1, 1].
func (l *Layer) Sample2D(x, y float64) float64 {
	x *= l.params.Frequency
	y *= l.params.Frequency
	if l.params.Fractal == nil {
		return l.single(x, y)
	}
	return l.fbm(x, y, *l.params.Fractal)
}

func (l *Layer) single(x, y float64) float64 {
	if l.params.Type == Value {
		return value2D(x, y, &l.p)
	}
	return perlin2D(x, y, &l.p)
}

func (l *Layer) fbm(x, y float64, f Fractal) float64 {
	octaves := f.Octaves
	if octaves < 1 {
		octaves = 1
	}
	amp := 0.5
	sum, norm := 0.0, 0.0
	for i := 0; i < octaves; i++ {
		sum += l.single(x, y) * amp
		norm += amp
		x *= f.Lacunarity
		y *= f.Lacunarity
		amp *= f.Gain
	}
	if norm > 0 {
		return sum / norm
	}
	return sum
}

// xorshift64* generator used only to shuffle the permutation table.
type xorshift64s uint64

func newXorshift(seed uint64) xorshift64s { return xorshift64s(seed | 1) }

func (s *xorshift64s) next() uint64 {
	x := uint64(*s)
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	*s = xorshift64s(x)
	return x * 0x2545F4914F6CDD1D
}

func permutation(seed uint64) [512]uint8 {
	var base [256]uint8
	for i := range base {
		base[i] = uint8(i)
	}
	rng := newXorshift(seed ^ seedMix)
	for i := 255; i > 0; i-- {
		j := int(rng.next() % uint64(i+1))
		base[i], base[j] = base[j], base[i]
	}
	var p [512]uint8
	for i := range p {
		p[i] = base[i&255]
	}
	return p
}

func fade(t float64) float64 { return t * t * t * (t*(t*6-15) + 10) }

func lerp(a, b, t float64) float64 { return a + t*(b-a) }

func grad2(hash uint8, x, y float64) float64 {
	switch hash & 7 {
	case 0:
		return x + y
	case 1:
		return x - y
	case 2:
		return -x + y
	case 3:
		return -x - y
	case 4:
		return x
	case 5:
		return -x
	case 6:
		return y
	default:
		return -y
	}
}

type corners struct {
	aa, ab, ba, bb uint8
	xf, yf         float64
}

func lattice(x, y float64, p *[512]uint8) corners {
	fx, fy := math.Floor(x), math.Floor(y)
	xi0 := int(fx) & 255
	yi0 := int(fy) & 255
	xi1 := (xi0 + 1) & 255
	yi1 := (yi0 + 1) & 255
	return corners{
		aa: p[(int(p[xi0])+yi0)&255],
		ab: p[(int(p[xi0])+yi1)&255],
		ba: p[(int(p[xi1])+yi0)&255],
		bb: p[(int(p[xi1])+yi1)&255],
		xf: x - fx,
		yf: y - fy,
	}
}

func perlin2D(x, y float64, p *[512]uint8) float64 {
	c := lattice(x, y, p)
	u, v := fade(c.xf), fade(c.yf)
	x1 := lerp(grad2(c.aa, c.xf, c.yf), grad2(c.ba, c.xf-1, c.yf), u)
	x2 := lerp(grad2(c.ab, c.xf, c.yf-1), grad2(c.bb, c.xf-1, c.yf-1), u)
	return lerp(x1, x2, v) * 0.7071
}

func value2D(x, y float64, p *[512]uint8) float64 {
	c := lattice(x, y, p)
	u, v := fade(c.xf), fade(c.yf)
	x1 := lerp(float64(c.aa)/255, float64(c.ba)/255, u)
	x2 := lerp(float64(c.ab)/255, float64(c.bb)/255, u)
	return lerp(x1, x2, v)*2 - 1
}

// Bank maps layer names to layers. It is read-only after NewBank returns.
type Bank struct {
	layers map[string]*Layer
}

func NewBank(layers ...*Layer) (*Bank, error) {
	b := &Bank{layers: make(map[string]*Layer, len(layers))}
	for _, l := range layers {
		if l == nil {
			continue
		}
		if l.Name() == "" {
			return nil, fmt.Errorf("noise layer without name")
		}
		if _, dup := b.layers[l.Name()]; dup {
			return nil, fmt.Errorf("duplicate noise layer %q", l.Name())
		}
		b.layers[l.Name()] = l
	}
	return b, nil
}

func (b *Bank) Get(name string) (*Layer, bool) {
	if b == nil {
		return nil, false
	}
	l, ok := b.layers[name]
	return l, ok
}

// MustGet panics when the layer is absent; callers check required layers at load time.
func (b *Bank) MustGet(name string) *Layer {
	l, ok := b.Get(name)
	if !ok {
		panic(fmt.Sprintf("noise: layer %q not in bank", name))
	}
	return l
}

func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.layers)
}

func (b *Bank) Names() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.layers))
	for n := range b.layers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
