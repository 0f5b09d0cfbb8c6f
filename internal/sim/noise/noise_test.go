package noise

import (
	"math"
	"testing"
)

func TestSampleIsDeterministic(t *testing.T) {
	for _, typ := range []Type{Perlin, Value} {
		for _, fr := range []*Fractal{nil, {Octaves: 5, Lacunarity: 2, Gain: 0.5}} {
			a := NewLayer(Params{Name: "a", Seed: 2025, Frequency: 0.03, Type: typ, Fractal: fr})
			b := NewLayer(Params{Name: "b", Seed: 2025, Frequency: 0.03, Type: typ, Fractal: fr})
			for i := 0; i < 200; i++ {
				x := float64(i)*1.37 - 91
				y := float64(i)*-0.73 + 13
				va, vb := a.Sample2D(x, y), b.Sample2D(x, y)
				if math.Float64bits(va) != math.Float64bits(vb) {
					t.Fatalf("%v fractal=%v: sample(%v,%v) differs: %v vs %v", typ, fr != nil, x, y, va, vb)
				}
				if again := a.Sample2D(x, y); math.Float64bits(again) != math.Float64bits(va) {
					t.Fatalf("repeat sample differs: %v vs %v", va, again)
				}
			}
		}
	}
}

func TestSampleRange(t *testing.T) {
	layers := []*Layer{
		NewLayer(Params{Seed: 123, Frequency: 0.02, Type: Perlin}),
		NewLayer(Params{Seed: 123, Frequency: 0.02, Type: Value}),
		NewLayer(Params{Seed: 9, Frequency: 0.05, Type: Perlin, Fractal: &Fractal{Octaves: 6, Lacunarity: 2, Gain: 0.5}}),
	}
	for _, l := range layers {
		for x := -300; x < 300; x += 7 {
			for y := -300; y < 300; y += 11 {
				v := l.Sample2D(float64(x)+0.5, float64(y)-0.25)
				if math.IsNaN(v) || v < -1.1 || v > 1.1 {
					t.Fatalf("sample out of range: %v at (%d,%d)", v, x, y)
				}
			}
		}
	}
}

func TestFractalChangesOutput(t *testing.T) {
	single := NewLayer(Params{Seed: 42, Frequency: 0.03})
	fbm := NewLayer(Params{Seed: 42, Frequency: 0.03, Fractal: &Fractal{Octaves: 5, Lacunarity: 2, Gain: 0.5}})
	s, f := single.Sample2D(1, 2), fbm.Sample2D(1, 2)
	if math.Abs(s-f) <= 1e-9 {
		t.Fatalf("expected fbm to differ from single octave: %v vs %v", s, f)
	}
}

func TestSeedsDiffer(t *testing.T) {
	a := NewLayer(Params{Seed: 1, Frequency: 0.1})
	b := NewLayer(Params{Seed: 2, Frequency: 0.1})
	same := 0
	for i := 0; i < 64; i++ {
		if a.Sample2D(float64(i)+0.3, 0.7) == b.Sample2D(float64(i)+0.3, 0.7) {
			same++
		}
	}
	if same == 64 {
		t.Fatalf("different seeds produced identical samples")
	}
}

func TestPermutationIsShuffle(t *testing.T) {
	p := permutation(12345)
	var seen [256]bool
	for i := 0; i < 256; i++ {
		seen[p[i]] = true
		if p[i] != p[i+256] {
			t.Fatalf("table not duplicated at %d", i)
		}
	}
	for v, ok := range seen {
		if !ok {
			t.Fatalf("value %d missing from permutation", v)
		}
	}
}

func TestFrequencyClamp(t *testing.T) {
	l := NewLayer(Params{Frequency: 0})
	if l.Params().Frequency <= 0 {
		t.Fatalf("frequency not clamped: %v", l.Params().Frequency)
	}
}

func TestParseTypeFallback(t *testing.T) {
	if ParseType("Value") != Value || ParseType("Perlin") != Perlin || ParseType("Simplex") != Perlin {
		t.Fatalf("unexpected ParseType mapping")
	}
}

func TestBank(t *testing.T) {
	b, err := NewBank(NewLayer(Params{Name: "base"}), NewLayer(Params{Name: "mountain_mask"}))
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	if _, ok := b.Get("base"); !ok {
		t.Fatalf("missing base layer")
	}
	if _, ok := b.Get("nope"); ok {
		t.Fatalf("unexpected layer")
	}
	if names := b.Names(); len(names) != 2 || names[0] != "base" {
		t.Fatalf("names: %v", names)
	}
	if _, err := NewBank(NewLayer(Params{Name: "x"}), NewLayer(Params{Name: "x"})); err == nil {
		t.Fatalf("expected duplicate error")
	}
}
