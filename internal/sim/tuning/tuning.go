package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"morphvox.dev/internal/sim/voxel"
)

type Tuning struct {
	TickIntervalMs int    `yaml:"tick_interval_ms"`
	MaxTasks       int    `yaml:"max_tasks"`
	Workers        int    `yaml:"workers"`
	RetryDelayMs   int    `yaml:"retry_delay_ms"`
	Storage        string `yaml:"storage"`

	Bootstrap Bootstrap `yaml:"bootstrap"`

	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	PersistChunks      *bool `yaml:"persist_chunks"`
}

type Bootstrap struct {
	GenerateRadius int `yaml:"generate_radius"`
	MeshRadius     int `yaml:"mesh_radius"`
}

func Defaults() Tuning {
	persist := true
	return Tuning{
		TickIntervalMs: 50,
		MaxTasks:       16,
		RetryDelayMs:   15,
		Storage:        string(voxel.EncodingPacked),
		Bootstrap:      Bootstrap{GenerateRadius: 4, MeshRadius: 3},
		PersistChunks:  &persist,
	}
}

// Load reads a tuning file over the defaults. A missing file is not an
// error (found reports false); a malformed or out-of-range one is.
func Load(path string) (t Tuning, found bool, err error) {
	t = Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return t, false, nil
		}
		return t, false, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, true, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, true, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, true, nil
}

func (t Tuning) Validate() error {
	if t.TickIntervalMs < 10 || t.TickIntervalMs > 1000 {
		return fmt.Errorf("tick_interval_ms %d outside [10,1000]", t.TickIntervalMs)
	}
	if t.MaxTasks <= 0 {
		return fmt.Errorf("max_tasks must be positive, got %d", t.MaxTasks)
	}
	if t.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", t.Workers)
	}
	if t.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must be >= 0, got %d", t.RetryDelayMs)
	}
	if _, err := voxel.ParseEncoding(t.Storage); err != nil {
		return err
	}
	if t.Bootstrap.GenerateRadius < 0 || t.Bootstrap.MeshRadius < 0 {
		return fmt.Errorf("bootstrap radii must be >= 0")
	}
	// The rim of the mesh cube needs generated neighbors one chunk further out.
	if t.Bootstrap.MeshRadius >= t.Bootstrap.GenerateRadius {
		return fmt.Errorf("bootstrap mesh_radius %d must be below generate_radius %d",
			t.Bootstrap.MeshRadius, t.Bootstrap.GenerateRadius)
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	return nil
}

func (t Tuning) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}

func (t Tuning) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayMs) * time.Millisecond
}

func (t Tuning) Encoding() voxel.Encoding {
	enc, err := voxel.ParseEncoding(t.Storage)
	if err != nil {
		return voxel.EncodingPacked
	}
	return enc
}

func (t Tuning) Persist() bool {
	return t.PersistChunks == nil || *t.PersistChunks
}
