package world

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

type memSink struct {
	mu     sync.Mutex
	chunks map[mathx.Vec3i]bool
	meshes map[mathx.Vec3i]bool
}

func newMemSink() *memSink {
	return &memSink{chunks: map[mathx.Vec3i]bool{}, meshes: map[mathx.Vec3i]bool{}}
}

func (s *memSink) SaveChunk(ch *store.Chunk) {
	s.mu.Lock()
	s.chunks[ch.Pos] = true
	s.mu.Unlock()
}

func (s *memSink) SaveMesh(m *mesh.Mesh) {
	s.mu.Lock()
	s.meshes[m.Pos] = true
	s.mu.Unlock()
}

type memTickLog struct{ entries []TickLogEntry }

func (l *memTickLog) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func testConfig() WorldConfig {
	return WorldConfig{
		ID:             "test",
		TickInterval:   5 * time.Millisecond,
		MaxTasks:       8,
		Workers:        4,
		RetryDelay:     time.Millisecond,
		Encoding:       voxel.EncodingPacked,
		GenerateRadius: 2,
		MeshRadius:     1,
		PersistChunks:  true,
	}
}

func newTestWorld(t *testing.T, cfg WorldConfig, opts Options) *World {
	t.Helper()
	w, err := New(cfg, catalogs.Default(), opts)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func driveUntilIdle(t *testing.T, w *World) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for !w.Idle() {
		if time.Now().After(deadline) {
			t.Fatalf("world did not settle: %+v", w.Metrics())
		}
		w.StepOnce()
		time.Sleep(time.Millisecond)
	}
}

func TestTickRejectsForeignCaller(t *testing.T) {
	w := newTestWorld(t, testConfig(), Options{})
	for _, caller := range []uuid.UUID{uuid.Nil, uuid.New()} {
		tick, err := w.Tick(caller)
		if !errors.Is(err, ErrUnauthorizedTick) {
			t.Fatalf("caller %s: err = %v", caller, err)
		}
		if tick != 0 || w.CurrentTick() != 0 {
			t.Fatalf("rejected tick advanced the counter")
		}
	}
	if _, err := w.Tick(w.system); err != nil {
		t.Fatalf("system tick: %v", err)
	}
}

func TestTickCounterAndRate(t *testing.T) {
	w := newTestWorld(t, testConfig(), Options{})
	for i := 1; i <= 3; i++ {
		if got := w.StepOnce(); got != uint64(i) {
			t.Fatalf("tick %d returned %d", i, got)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if w.CurrentTick() != 3 || w.Metrics().Tick != 3 {
		t.Fatalf("tick = %d metrics = %d", w.CurrentTick(), w.Metrics().Tick)
	}
	if r := w.TickRate(); r <= 0 || r > 1000 {
		t.Fatalf("tick rate = %v", r)
	}
}

func TestBootstrapGeneratesAndMeshes(t *testing.T) {
	sink := newMemSink()
	tl := &memTickLog{}
	w := newTestWorld(t, testConfig(), Options{Sink: sink, TickLogger: tl})

	g, m, err := w.Bootstrap(time.Now())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if g != 125 || m != 27 {
		t.Fatalf("queued %d/%d, want 125/27", g, m)
	}
	driveUntilIdle(t, w)

	if w.Chunks().Len() != 125 || w.Meshes().Len() != 27 {
		t.Fatalf("chunks=%d meshes=%d", w.Chunks().Len(), w.Meshes().Len())
	}
	quads := 0
	for _, msh := range w.Meshes().All() {
		if !msh.Valid() {
			t.Fatalf("mesh %v breaks index invariant", msh.Pos)
		}
		quads += msh.Quads()
	}
	// The default surface crosses the chunks around the origin.
	if quads == 0 {
		t.Fatalf("no faces were meshed")
	}
	if len(sink.chunks) != 125 || len(sink.meshes) != 27 {
		t.Fatalf("sink got %d chunks %d meshes", len(sink.chunks), len(sink.meshes))
	}
	generated, meshed := 0, 0
	for _, e := range tl.entries {
		generated += e.Generated
		meshed += e.Meshed
	}
	if generated != 125 || meshed != 27 {
		t.Fatalf("tick log counted %d generated %d meshed", generated, meshed)
	}

	if g, m, _ := w.Bootstrap(time.Now()); g != 0 || m != 0 {
		t.Fatalf("second bootstrap queued %d/%d", g, m)
	}
}

func TestMeshWaitsForNeighbors(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateRadius, cfg.MeshRadius = 0, 0
	w := newTestWorld(t, cfg, Options{})
	if _, _, err := w.Bootstrap(time.Now()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	for i := 0; i < 50; i++ {
		w.StepOnce()
		time.Sleep(time.Millisecond)
	}
	if w.Chunks().Len() != 1 || w.Meshes().Len() != 0 {
		t.Fatalf("chunks=%d meshes=%d", w.Chunks().Len(), w.Meshes().Len())
	}
	if st := w.MeshStats(); st.Retried == 0 || st.Submitted != 0 || st.Queued != 1 {
		t.Fatalf("mesh stats: %+v", st)
	}

	// Supplying the neighbors unblocks meshing.
	for _, off := range store.NeighborOffsets[1:] {
		if err := w.Request(off, time.Now()); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	deadline := time.Now().Add(10 * time.Second)
	for w.Meshes().Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("origin never meshed: %+v", w.MeshStats())
		}
		w.StepOnce()
		time.Sleep(time.Millisecond)
	}
}

func TestRequestOutsideBootstrapMeshes(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateRadius, cfg.MeshRadius = 1, 0
	w := newTestWorld(t, cfg, Options{})
	w.Bootstrap(time.Now())
	driveUntilIdle(t, w)

	far := mathx.V3(4, 0, 0)
	if err := w.Request(far, time.Now()); err != nil {
		t.Fatalf("request: %v", err)
	}
	driveUntilIdle(t, w)
	for _, off := range store.NeighborOffsets {
		if !w.Chunks().Has(far.Add(off)) {
			t.Fatalf("neighbor %v not generated", far.Add(off))
		}
	}
	if _, ok := w.Meshes().Get(far); !ok {
		t.Fatalf("requested chunk never meshed: %+v", w.MeshStats())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateRadius, cfg.MeshRadius = 1, 0
	w := newTestWorld(t, cfg, Options{})
	w.Bootstrap(time.Now())
	driveUntilIdle(t, w)
	snap := w.ExportSnapshot()
	if len(snap.Chunks) != 27 || len(snap.Meshes) != 1 || snap.Header.Tick != w.CurrentTick() {
		t.Fatalf("snapshot: %d chunks %d meshes tick %d", len(snap.Chunks), len(snap.Meshes), snap.Header.Tick)
	}

	cfg.Encoding = voxel.EncodingPlain
	restored := newTestWorld(t, cfg, Options{})
	if err := restored.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if restored.CurrentTick() != w.CurrentTick() || restored.Chunks().Len() != 27 || restored.Meshes().Len() != 1 {
		t.Fatalf("restored state differs")
	}
	a, _ := w.Chunks().Get(mathx.V3(0, 0, 0))
	b, _ := restored.Chunks().Get(mathx.V3(0, 0, 0))
	for i := 0; i < voxel.Volume; i++ {
		if a.Blocks.Get(i) != b.Blocks.Get(i) {
			t.Fatalf("block %d differs after restore", i)
		}
	}
	if g, m, _ := restored.Bootstrap(time.Now()); g != 0 || m != 0 {
		t.Fatalf("restored world re-queued %d/%d", g, m)
	}

	bad := snap
	bad.ChunkSize = 32
	if err := restored.ImportSnapshot(bad); err == nil {
		t.Fatalf("expected chunk size error")
	}
}

func TestSnapshotSinkEveryNTicks(t *testing.T) {
	cfg := testConfig()
	cfg.SnapshotEveryTicks = 2
	sink := make(chan snapshot.SnapshotV1, 4)
	w := newTestWorld(t, cfg, Options{SnapshotSink: sink})
	for i := 0; i < 4; i++ {
		w.StepOnce()
	}
	if len(sink) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(sink))
	}
	if s := <-sink; s.Header.Tick != 2 || s.Header.WorldID != "test" {
		t.Fatalf("first snapshot header: %+v", s.Header)
	}
}

func TestFullSnapshotSinkSkipsTicks(t *testing.T) {
	cfg := testConfig()
	cfg.SnapshotEveryTicks = 1
	sink := make(chan snapshot.SnapshotV1, 1)
	w := newTestWorld(t, cfg, Options{SnapshotSink: sink})
	for i := 0; i < 3; i++ {
		w.StepOnce()
	}
	if got := w.Metrics().Snapshots; got.Queued != 1 || got.Skipped != 2 {
		t.Fatalf("snapshots = %+v", got)
	}
	if s := <-sink; s.Header.Tick != 1 {
		t.Fatalf("queued snapshot tick %d", s.Header.Tick)
	}
	w.StepOnce()
	if got := w.Metrics().Snapshots; got.Queued != 2 {
		t.Fatalf("drained sink should accept again: %+v", got)
	}
}

func TestRunStops(t *testing.T) {
	w := newTestWorld(t, testConfig(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
	if w.CurrentTick() == 0 {
		t.Fatalf("run never ticked")
	}

	go func() { errc <- w.Run(context.Background()) }()
	w.Stop()
	if err := <-errc; err != nil {
		t.Fatalf("run after stop: %v", err)
	}
}
