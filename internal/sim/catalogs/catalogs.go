// Package catalogs loads the block registry, world shape and noise layers
// from a config directory. Files may carry comments; each one is validated
// against an embedded JSON schema and replaced by built-in defaults when it
// is absent or malformed, so loading never fails.
package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/muhammadmuzzammil1998/jsonc"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

type Catalogs struct {
	Blocks *Registry
	World  WorldShape
	Noise  NoiseCatalog

	Digests Digests
}

// Digests identify the exact catalog contents a mesh consumer was built against.
type Digests struct {
	Blocks  string `json:"blocks"`
	Palette string `json:"palette"`
	World   string `json:"world"`
	Noise   string `json:"noise"`
}

func Load(configDir string, logger *log.Logger) *Catalogs {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Catalogs{}
	source := func(name string) string {
		if configDir == "" {
			return ""
		}
		return filepath.Join(configDir, name)
	}

	raw := readSource(source("blocks.json"), "blocks", defaultBlocksJSON, logger)
	reg, err := parseBlocks(raw)
	if err != nil {
		logger.Printf("blocks.json: %v; using default registry", err)
		raw = []byte(defaultBlocksJSON)
		reg, _ = parseBlocks(raw)
	}
	c.Blocks = reg
	c.Digests.Blocks = sha256Hex(raw)
	c.Digests.Palette = reg.PaletteDigest()

	raw = readSource(source("gen.json"), "gen", defaultGenJSON, logger)
	shape, err := parseWorldShape(raw)
	if err != nil {
		logger.Printf("gen.json: %v; using default world shape", err)
		raw = []byte(defaultGenJSON)
		shape, _ = parseWorldShape(raw)
	}
	c.World = shape
	c.Digests.World = sha256Hex(raw)

	raw = readSource(source("noise.json"), "noise", defaultNoiseJSON, logger)
	nc, err := parseNoise(raw, logger)
	if err != nil {
		logger.Printf("noise.json: %v; using default noise layers", err)
		raw = []byte(defaultNoiseJSON)
		nc, _ = parseNoise(raw, logger)
	}
	c.Noise = nc
	c.Digests.Noise = sha256Hex(raw)

	return c
}

// Default returns the built-in catalogs without touching the filesystem.
func Default() *Catalogs {
	return Load("", nil)
}

// readSource returns the comment-stripped JSON of path, validated against
// the named schema, or the fallback text when either step fails.
func readSource(path, schemaName, fallback string, logger *log.Logger) []byte {
	if path == "" {
		return []byte(fallback)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Printf("%s not found; using defaults", filepath.Base(path))
		} else {
			logger.Printf("%s: %v; using defaults", filepath.Base(path), err)
		}
		return []byte(fallback)
	}
	clean := jsonc.ToJSON(raw)
	if err := validate(schemaName, clean); err != nil {
		logger.Printf("%s: %v; using defaults", filepath.Base(path), err)
		return []byte(fallback)
	}
	return clean
}

func validate(schemaName string, raw []byte) error {
	s, err := compileSchema(schemaName)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	b, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString(name+".schema.json", string(b))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return s, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
