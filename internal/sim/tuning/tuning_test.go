package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"morphvox.dev/internal/sim/voxel"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	tu, found, err := Load(filepath.Join(t.TempDir(), "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatalf("found should be false")
	}
	if tu.TickInterval() != 50*time.Millisecond || tu.MaxTasks != 16 || tu.RetryDelay() != 15*time.Millisecond {
		t.Fatalf("defaults: %+v", tu)
	}
	if tu.Encoding() != voxel.EncodingPacked || !tu.Persist() {
		t.Fatalf("defaults: %+v", tu)
	}
	if tu.Bootstrap.GenerateRadius != 4 || tu.Bootstrap.MeshRadius != 3 {
		t.Fatalf("bootstrap defaults: %+v", tu.Bootstrap)
	}
}

func TestLoad_Overrides(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "tick_interval_ms: 20\nmax_tasks: 4\nstorage: plain\npersist_chunks: false\nbootstrap:\n  mesh_radius: 1\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, found, err := Load(p)
	if err != nil || !found {
		t.Fatalf("Load: %v found=%v", err, found)
	}
	if tu.TickIntervalMs != 20 || tu.MaxTasks != 4 || tu.Encoding() != voxel.EncodingPlain || tu.Persist() {
		t.Fatalf("overrides: %+v", tu)
	}
	if tu.Bootstrap.GenerateRadius != 4 || tu.Bootstrap.MeshRadius != 1 {
		t.Fatalf("partial bootstrap override: %+v", tu.Bootstrap)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"tick too fast": "tick_interval_ms: 5\n",
		"tick too slow": "tick_interval_ms: 5000\n",
		"bad storage":   "storage: rle\n",
		"zero tasks":    "max_tasks: 0\n",
		"not yaml":      "tick_interval_ms: [\n",
		"mesh rim":      "bootstrap:\n  generate_radius: 2\n  mesh_radius: 2\n",
		"mesh past gen": "bootstrap:\n  generate_radius: 1\n  mesh_radius: 3\n",
	}
	for name, body := range cases {
		p := filepath.Join(t.TempDir(), "tuning.yaml")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	tu, found, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if tu.SnapshotEveryTicks != 1200 || tu.Encoding() != voxel.EncodingPacked || !tu.Persist() {
		t.Fatalf("tuning: %+v", tu)
	}
}
