package catalogs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxBlocks is bounded by the 7-bit block field of a packed mesh vertex.
const MaxBlocks = 128

var (
	ErrTooManyBlocks  = errors.New("too many block types")
	ErrDuplicateBlock = errors.New("duplicate block name")
)

type ModelKind string

const (
	ModelEmpty  ModelKind = "Empty"
	ModelCube   ModelKind = "Cube"
	ModelStair  ModelKind = "Stair"
	ModelSlab   ModelKind = "Slab"
	ModelCustom ModelKind = "Custom"
)

// Model is encoded either as the bare string "Empty" or as a one-key
// object such as {"Cube": "stone.png"}.
type Model struct {
	Kind    ModelKind
	Texture string
}

// IsOpaqueCube reports whether faces of this model take part in culling.
// Stairs, slabs and custom models are accepted but not meshed yet.
func (m Model) IsOpaqueCube() bool { return m.Kind == ModelCube }

func (m Model) MarshalJSON() ([]byte, error) {
	if m.Kind == ModelEmpty || m.Kind == "" {
		return json.Marshal(string(ModelEmpty))
	}
	return json.Marshal(map[string]string{string(m.Kind): m.Texture})
}

func (m *Model) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if ModelKind(s) != ModelEmpty {
			return fmt.Errorf("unknown model %q", s)
		}
		*m = Model{Kind: ModelEmpty}
		return nil
	}
	var obj map[string]string
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("model: want exactly one variant, got %d", len(obj))
	}
	for k, tex := range obj {
		switch ModelKind(k) {
		case ModelCube, ModelStair, ModelSlab, ModelCustom:
			*m = Model{Kind: ModelKind(k), Texture: tex}
		default:
			return fmt.Errorf("unknown model %q", k)
		}
	}
	return nil
}

type BlockType struct {
	ID    uint16 `json:"id"`
	Name  string `json:"name"`
	Model Model  `json:"model"`
}

type BlockDef struct {
	Name  string
	Model Model
}

// Registry is the ordered block table. Ids are positions in the source list.
type Registry struct {
	blocks   []BlockType
	byName   map[string]uint16
	meshable [MaxBlocks]bool
	palette  string
}

func NewRegistry(defs []BlockDef) (*Registry, error) {
	if len(defs) > MaxBlocks {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBlocks, len(defs), MaxBlocks)
	}
	r := &Registry{
		blocks: make([]BlockType, 0, len(defs)),
		byName: make(map[string]uint16, len(defs)),
	}
	names := make([]string, 0, len(defs))
	for i, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("block %d: empty name", i)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBlock, d.Name)
		}
		id := uint16(i)
		r.blocks = append(r.blocks, BlockType{ID: id, Name: d.Name, Model: d.Model})
		r.byName[d.Name] = id
		r.meshable[i] = d.Model.IsOpaqueCube()
		names = append(names, d.Name)
	}
	pal, _ := json.Marshal(names)
	r.palette = sha256Hex(pal)
	return r, nil
}

func parseBlocks(raw []byte) (*Registry, error) {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, err
	}
	defs := make([]BlockDef, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("entry %d: want [name, model]", i)
		}
		var d BlockDef
		if err := json.Unmarshal(p[0], &d.Name); err != nil {
			return nil, fmt.Errorf("entry %d name: %w", i, err)
		}
		if err := json.Unmarshal(p[1], &d.Model); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, d.Name, err)
		}
		defs = append(defs, d)
	}
	return NewRegistry(defs)
}

// IsMeshable is a table lookup. Unknown ids are not meshable.
func (r *Registry) IsMeshable(id uint16) bool {
	return int(id) < MaxBlocks && r.meshable[id]
}

// Lookup resolves a block name, falling back to air (id 0) when absent.
func (r *Registry) Lookup(name string) uint16 {
	return r.byName[name]
}

func (r *Registry) Find(name string) (uint16, bool) {
	id, ok := r.byName[name]
	return id, ok
}

func (r *Registry) Block(id uint16) (BlockType, bool) {
	if int(id) >= len(r.blocks) {
		return BlockType{}, false
	}
	return r.blocks[id], true
}

func (r *Registry) Len() int { return len(r.blocks) }

func (r *Registry) Blocks() []BlockType {
	out := make([]BlockType, len(r.blocks))
	copy(out, r.blocks)
	return out
}

func (r *Registry) Palette() []string {
	out := make([]string, len(r.blocks))
	for i, b := range r.blocks {
		out[i] = b.Name
	}
	return out
}

func (r *Registry) PaletteDigest() string { return r.palette }

const defaultBlocksJSON = `[
  ["air", "Empty"],
  ["stone", {"Cube": "stone.png"}],
  ["dirt", {"Cube": "dirt.png"}],
  ["grass", {"Cube": "grass.png"}]
]`
