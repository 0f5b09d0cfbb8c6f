package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/world"
)

func newAdminMux(t *testing.T) (*world.World, *http.ServeMux, chan snapshot.SnapshotV1) {
	t.Helper()
	w, err := world.New(world.WorldConfig{ID: "admin", Workers: 1}, catalogs.Default(), world.Options{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	t.Cleanup(w.Close)
	snapCh := make(chan snapshot.SnapshotV1, 1)
	mux := http.NewServeMux()
	registerAdmin(mux, w, snapCh)
	return w, mux, snapCh
}

func do(mux *http.ServeMux, method, target, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminState(t *testing.T) {
	w, mux, _ := newAdminMux(t)
	w.StepOnce()

	if rec := do(mux, http.MethodGet, "/admin/v1/state", "203.0.113.5:1000"); rec.Code != http.StatusForbidden {
		t.Fatalf("remote state: %d", rec.Code)
	}
	rec := do(mux, http.MethodGet, "/admin/v1/state", "127.0.0.1:1000")
	var body struct {
		WorldID string `json:"world_id"`
		Tick    uint64 `json:"tick"`
		Idle    bool   `json:"idle"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.WorldID != "admin" || body.Tick != 1 || !body.Idle {
		t.Fatalf("state: %+v", body)
	}
}

func TestAdminSnapshotAndRequest(t *testing.T) {
	w, mux, snapCh := newAdminMux(t)

	if rec := do(mux, http.MethodGet, "/admin/v1/snapshot", "127.0.0.1:1"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("get snapshot: %d", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/admin/v1/snapshot", "127.0.0.1:1"); rec.Code != http.StatusOK {
		t.Fatalf("post snapshot: %d %s", rec.Code, rec.Body.String())
	}
	select {
	case s := <-snapCh:
		if s.Header.WorldID != "admin" {
			t.Fatalf("snapshot header: %+v", s.Header)
		}
	default:
		t.Fatalf("no snapshot queued")
	}

	if rec := do(mux, http.MethodPost, "/admin/v1/request?x=1&y=0", "127.0.0.1:1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing z: %d", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/admin/v1/request?x=1&y=0&z=-2", "127.0.0.1:1"); rec.Code != http.StatusOK {
		t.Fatalf("request: %d %s", rec.Code, rec.Body.String())
	}
	deadline := time.Now().Add(10 * time.Second)
	for !w.Chunks().Has(mathx.V3(1, 0, -2)) {
		if time.Now().After(deadline) {
			t.Fatalf("requested chunk never generated")
		}
		w.StepOnce()
		time.Sleep(time.Millisecond)
	}
}

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("empty dir: %q", got)
	}
	snaps := filepath.Join(dir, "snapshots")
	_ = os.MkdirAll(snaps, 0o755)
	for _, name := range []string{"9.snap.zst", "120.snap.zst", "30.snap.zst", "notes.txt", "x.snap.zst"} {
		_ = os.WriteFile(filepath.Join(snaps, name), nil, 0o644)
	}
	if got := latestSnapshot(dir); filepath.Base(got) != "120.snap.zst" {
		t.Fatalf("latest = %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("MV_TEST_FLAG", "false")
	if envBool("MV_TEST_FLAG", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("MV_TEST_FLAG", "nonsense")
	if !envBool("MV_TEST_FLAG", true) {
		t.Fatalf("expected default on parse error")
	}
	if envBool("MV_TEST_FLAG_UNSET", false) {
		t.Fatalf("expected default when unset")
	}
}
