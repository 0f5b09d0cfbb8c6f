package catalogs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"

	"morphvox.dev/internal/sim/noise"
)

const (
	LayerBase           = "base"
	LayerMountainMask   = "mountain_mask"
	LayerMountainHeight = "mountain_height"
)

var requiredLayers = []string{LayerBase, LayerMountainMask, LayerMountainHeight}

type NoiseLayerDef struct {
	Name            string  `json:"name"`
	Seed            uint64  `json:"seed"`
	Frequency       float64 `json:"frequency"`
	Octaves         int     `json:"octaves"`
	Lacunarity      float64 `json:"lacunarity"`
	Gain            float64 `json:"gain"`
	NoiseType       string  `json:"noise_type"`
	BaseLevelBlocks float64 `json:"base_level_blocks"`
	AmplitudeBlocks float64 `json:"amplitude_blocks"`
}

// Params converts the definition to a noise layer. A zero frequency takes
// the noise default; non-positive octaves disable the fractal sum.
func (d NoiseLayerDef) Params() noise.Params {
	p := noise.Params{
		Name:      d.Name,
		Seed:      d.Seed,
		Frequency: d.Frequency,
		Type:      noise.ParseType(d.NoiseType),
		BaseLevel: d.BaseLevelBlocks,
		Amplitude: d.AmplitudeBlocks,
	}
	if p.Frequency == 0 {
		p.Frequency = noise.DefaultFrequency
	}
	if d.Octaves > 0 {
		p.Fractal = &noise.Fractal{Octaves: d.Octaves, Lacunarity: d.Lacunarity, Gain: d.Gain}
	}
	return p
}

type NoiseCatalog struct {
	Layers []NoiseLayerDef
}

// Bank builds the immutable noise bank from the configured layers.
func (n NoiseCatalog) Bank() (*noise.Bank, error) {
	layers := make([]*noise.Layer, 0, len(n.Layers))
	for _, d := range n.Layers {
		layers = append(layers, noise.NewLayer(d.Params()))
	}
	return noise.NewBank(layers...)
}

func (n NoiseCatalog) Layer(name string) (NoiseLayerDef, bool) {
	for _, d := range n.Layers {
		if d.Name == name {
			return d, true
		}
	}
	return NoiseLayerDef{}, false
}

func defaultNoiseLayers() []NoiseLayerDef {
	var out []NoiseLayerDef
	_ = json.Unmarshal([]byte(defaultNoiseJSON), &out)
	return out
}

func parseNoise(raw []byte, logger *log.Logger) (NoiseCatalog, error) {
	var layers []NoiseLayerDef
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var single NoiseLayerDef
		if err := json.Unmarshal(raw, &single); err != nil {
			return NoiseCatalog{}, err
		}
		if single.Name == "" {
			single.Name = LayerBase
		}
		layers = []NoiseLayerDef{single}
	} else if err := json.Unmarshal(raw, &layers); err != nil {
		return NoiseCatalog{}, err
	}

	seen := make(map[string]bool, len(layers))
	for i, d := range layers {
		if d.Name == "" {
			return NoiseCatalog{}, fmt.Errorf("layer %d: missing name", i)
		}
		if seen[d.Name] {
			return NoiseCatalog{}, fmt.Errorf("duplicate layer %q", d.Name)
		}
		seen[d.Name] = true
	}
	defaults := defaultNoiseLayers()
	for _, name := range requiredLayers {
		if seen[name] {
			continue
		}
		for _, d := range defaults {
			if d.Name == name {
				logger.Printf("noise.json: layer %q missing; using default", name)
				layers = append(layers, d)
			}
		}
	}
	return NoiseCatalog{Layers: layers}, nil
}

const defaultNoiseJSON = `[
  {
    "name": "base",
    "seed": 12345,
    "frequency": 0.02,
    "octaves": 4,
    "lacunarity": 2.0,
    "gain": 0.5,
    "noise_type": "Perlin",
    "base_level_blocks": 16,
    "amplitude_blocks": 10
  },
  {
    "name": "mountain_mask",
    "seed": 777,
    "frequency": 0.004,
    "octaves": 3,
    "lacunarity": 2.0,
    "gain": 0.5,
    "noise_type": "Perlin",
    "base_level_blocks": 0,
    "amplitude_blocks": 1
  },
  {
    "name": "mountain_height",
    "seed": 4242,
    "frequency": 0.01,
    "octaves": 5,
    "lacunarity": 2.0,
    "gain": 0.5,
    "noise_type": "Perlin",
    "base_level_blocks": 96,
    "amplitude_blocks": 48
  }
]`
