package main

import (
	"path/filepath"
	"testing"
	"time"

	persistlog "morphvox.dev/internal/persistence/log"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/world"
)

func settledWorld(t *testing.T, opts world.Options) *world.World {
	t.Helper()
	w, err := world.New(world.WorldConfig{
		ID:             "replay",
		MaxTasks:       8,
		Workers:        2,
		RetryDelay:     time.Millisecond,
		GenerateRadius: 1,
		MeshRadius:     0,
	}, catalogs.Default(), opts)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	t.Cleanup(w.Close)
	if _, _, err := w.Bootstrap(time.Now()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	deadline := time.Now().Add(20 * time.Second)
	for !w.Idle() {
		if time.Now().After(deadline) {
			t.Fatalf("world did not settle")
		}
		w.StepOnce()
		time.Sleep(time.Millisecond)
	}
	return w
}

func TestVerifyRegeneratesSnapshot(t *testing.T) {
	snap := settledWorld(t, world.Options{}).ExportSnapshot()

	res, err := Verify(snap, catalogs.Default())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Chunks != 27 || res.Meshes != 1 || len(res.Mismatches) != 0 || len(res.DigestDrift) != 0 {
		t.Fatalf("result: %+v", res)
	}

	// Flip one stored block.
	snap.Chunks[0].Data = append([]byte{}, snap.Chunks[0].Data...)
	snap.Chunks[0].Data[0] ^= 0xFF
	snap.Digests["noise"] = "stale"
	res, err = Verify(snap, catalogs.Default())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(res.Mismatches) == 0 {
		t.Fatalf("corrupted chunk not detected")
	}
	if len(res.DigestDrift) != 1 || res.DigestDrift[0] != "noise" {
		t.Fatalf("drift: %v", res.DigestDrift)
	}
}

func TestSummarizeTicks(t *testing.T) {
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	w := settledWorld(t, world.Options{TickLogger: tl})
	ticks := w.CurrentTick()
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := persistlog.Files(filepath.Join(dir, "events"))
	if err != nil || len(files) == 0 {
		t.Fatalf("event files: %v %v", files, err)
	}
	sum, err := SummarizeTicks(files, 0, 0)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if uint64(sum.Entries) != ticks || sum.First != 1 || sum.Last != ticks || sum.Gaps != 0 {
		t.Fatalf("summary: %+v (ticks %d)", sum, ticks)
	}
	if sum.Generated != 27 || sum.Meshed != 1 {
		t.Fatalf("counts: %+v", sum)
	}

	sub, _ := SummarizeTicks(files, 2, 2)
	if sub.Entries != 1 || sub.First != 2 {
		t.Fatalf("window: %+v", sub)
	}
}
