package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/world"
)

// registerAdmin mounts local-only operator endpoints.
func registerAdmin(mux *http.ServeMux, w *world.World, snapCh chan<- snapshot.SnapshotV1) {
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Idle    bool               `json:"idle"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.ID(),
			Tick:    w.CurrentTick(),
			Idle:    w.Idle(),
			Metrics: w.Metrics(),
		}
		writeJSON(rw, http.StatusOK, resp)
	})

	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		snap := w.ExportSnapshot()
		select {
		case snapCh <- snap:
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": snap.Header.Tick})
		case <-time.After(2 * time.Second):
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": snap.Header.Tick, "error": "snapshot writer busy"})
		}
	})

	// POST /admin/v1/request?x=..&y=..&z=.. queues one chunk for generation and meshing.
	mux.HandleFunc("/admin/v1/request", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		var coords [3]int
		for i, k := range []string{"x", "y", "z"} {
			v, err := strconv.Atoi(q.Get(k))
			if err != nil {
				writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad " + k})
				return
			}
			coords[i] = v
		}
		pos := mathx.V3(coords[0], coords[1], coords[2])
		if err := w.Request(pos, time.Now()); err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "pos": pos.ToArray()})
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
