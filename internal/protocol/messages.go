package protocol

// BOOTSTRAP (server -> client), served once per connection before meshes.
type BootstrapMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`

	ChunkSize    int           `json:"chunk_size"`
	VertexLayout []VertexField `json:"vertex_layout"`
	Faces        []FaceInfo    `json:"faces"`

	World   WorldParams       `json:"world"`
	Palette []BlockInfo       `json:"palette"`
	Digests map[string]string `json:"digests"`

	// Frame format for /v1/meshes.
	MeshFrame string `json:"mesh_frame"`
}

type VertexField struct {
	Name  string `json:"name"`
	Shift int    `json:"shift"`
	Bits  int    `json:"bits"`
}

// FaceInfo maps a packed face index to its outward normal.
type FaceInfo struct {
	Index  int        `json:"index"`
	Name   string     `json:"name"`
	Normal [3]float32 `json:"normal"`
}

type WorldParams struct {
	ChunkRange       int `json:"chunk_range"`
	ChunkHeightRange int `json:"chunk_height_range"`
	ChunkBottomRange int `json:"chunk_bottom_range"`
	RangeRender      int `json:"range_render"`
	TickRateHz       int `json:"tick_rate_hz"`
}

type BlockInfo struct {
	ID      uint16 `json:"id"`
	Name    string `json:"name"`
	Model   string `json:"model"`
	Texture string `json:"texture,omitempty"`
}
