package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"morphvox.dev/internal/persistence/indexdb"
	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/sched"
	"morphvox.dev/internal/sim/tuning"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := indexdb.Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.SaveChunk(store.NewChunk(mathx.V3(-2, 0, 1), voxel.EncodingPacked))
	idx.SaveChunk(store.NewChunk(mathx.V3(3, -1, 0), voxel.EncodingPacked))
	idx.SaveMesh(&mesh.Mesh{Pos: mathx.V3(3, -1, 0), Vertices: []uint32{1}, Indices: []uint32{0}})
	idx.RecordSnapshot("snapshots/5.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Tick: 5}})
	idx.RecordSnapshot("snapshots/9.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Tick: 9}})
	if err := idx.UpsertCatalogs(catalogs.Default(), tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	now := time.Now()
	if _, err := idx.GenSchedule().Insert(sched.Entry{Pos: mathx.V3(0, 0, 0), Due: now.Add(-time.Second)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := idx.GenSchedule().Insert(sched.Entry{Pos: mathx.V3(1, 0, 0), Due: now.Add(time.Hour)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDBQueries(t *testing.T) {
	db := openDB(t, seedIndex(t))

	snaps, err := querySnapshots(db, 0)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Tick != 9 || snaps[1].Tick != 5 {
		t.Fatalf("snapshots = %+v", snaps)
	}

	c, err := queryCounts(db, time.Now())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	want := countsRow{Chunks: 2, Meshes: 1, GenPending: 2, GenOverdue: 1, LastSnapshot: 9}
	if c != want {
		t.Fatalf("counts = %+v, want %+v", c, want)
	}

	cats, err := queryCatalogs(db)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	found := false
	for _, r := range cats {
		if r.Name == "blocks_palette" && r.Digest == catalogs.Default().Digests.Palette {
			found = true
		}
	}
	if !found {
		t.Fatalf("palette row missing: %+v", cats)
	}

	b, err := queryBounds(db)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if b.Chunks != 2 || b.Min != [3]int{-2, -1, 0} || b.Max != [3]int{3, 0, 1} {
		t.Fatalf("bounds = %+v", b)
	}
}

func TestPruneSnapshot(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Chunks: []snapshot.ChunkV1{{Pos: [3]int{0, 0, 0}}, {Pos: [3]int{1, 0, 0}}, {Pos: [3]int{5, 0, 0}}},
		Meshes: []snapshot.MeshV1{{Pos: [3]int{0, 0, 0}}, {Pos: [3]int{2, 0, 0}}, {Pos: [3]int{5, 0, 0}}},
	}
	min, max, err := parseAABB("1,0,0:0,0,0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	chunks, meshes := pruneSnapshot(&snap, min, max)
	if chunks != 2 || meshes != 2 {
		t.Fatalf("removed chunks=%d meshes=%d", chunks, meshes)
	}
	if len(snap.Chunks) != 1 || snap.Chunks[0].Pos != [3]int{5, 0, 0} {
		t.Fatalf("chunks = %+v", snap.Chunks)
	}
	if len(snap.Meshes) != 1 || snap.Meshes[0].Pos != [3]int{5, 0, 0} {
		t.Fatalf("meshes = %+v", snap.Meshes)
	}
}

func TestParseAABB(t *testing.T) {
	if _, _, err := parseAABB("1,2,3"); err == nil {
		t.Fatalf("expected error for missing max")
	}
	if _, _, err := parseAABB("1,2:3,4,5"); err == nil {
		t.Fatalf("expected error for short vector")
	}
	min, max, err := parseAABB(" 4, -1, 2 : 0, 3, 2 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if min != [3]int{0, -1, 2} || max != [3]int{4, 3, 2} {
		t.Fatalf("min=%v max=%v", min, max)
	}
}

func TestLatestSnapshotSkipsPruned(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"3.snap.zst", "12.snap.zst", "40.pruned.snap.zst"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := latestSnapshot(dir); got != filepath.Join(snaps, "12.snap.zst") {
		t.Fatalf("latest = %q", got)
	}
}
