package meshfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"morphvox.dev/internal/protocol"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/world"
	"morphvox.dev/internal/sim/world/mesh"
)

func newFeed(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	w, err := world.New(world.WorldConfig{
		ID:             "feed",
		TickInterval:   50 * time.Millisecond,
		MaxTasks:       8,
		Workers:        2,
		RetryDelay:     time.Millisecond,
		GenerateRadius: 1,
		MeshRadius:     0,
	}, catalogs.Default(), world.Options{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	t.Cleanup(w.Close)

	mux := http.NewServeMux()
	NewServer(w, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return w, srv
}

func settle(t *testing.T, w *world.World) {
	t.Helper()
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
}

func TestBootstrapMatchesSchema(t *testing.T) {
	_, srv := newFeed(t)
	resp, err := http.Get(srv.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var generic any
	if err := json.NewDecoder(resp.Body).Decode(&generic); err != nil {
		t.Fatalf("decode: %v", err)
	}
	schema, err := protocol.Schema("bootstrap.schema.json")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if err := schema.Validate(generic); err != nil {
		t.Fatalf("bootstrap does not match schema: %v", err)
	}

	b, _ := json.Marshal(generic)
	var msg protocol.BootstrapMsg
	_ = json.Unmarshal(b, &msg)
	if msg.ChunkSize != 16 || msg.World.TickRateHz != 20 || msg.WorldID != "feed" {
		t.Fatalf("bootstrap: %+v", msg)
	}
	if msg.Faces[int(mesh.Up)].Normal != [3]float32{0, 1, 0} {
		t.Fatalf("up normal = %v", msg.Faces[int(mesh.Up)].Normal)
	}
	if len(msg.Palette) != 4 || msg.Palette[1].Name != "stone" || msg.Palette[0].Model != "Empty" {
		t.Fatalf("palette = %+v", msg.Palette)
	}
}

func TestRejectsNonLoopbackAndBadMethod(t *testing.T) {
	w, _ := newFeed(t)
	s := NewServer(w, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), protocol.ErrForbidden) {
		t.Fatalf("remote client: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	s.MetricsHandler()(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post: %d", rec.Code)
	}

	for addr, want := range map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"::1":          true,
		"192.168.0.1":  false,
		"garbage":      false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q) = %v", addr, got)
		}
	}
}

func TestMeshStreamSendsExistingThenNew(t *testing.T) {
	w, srv := newFeed(t)
	settle(t, w)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/meshes"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() protocol.MeshFrame {
		t.Helper()
		typ, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if typ != websocket.BinaryMessage {
			t.Fatalf("message type %d", typ)
		}
		f, err := protocol.DecodeMeshFrame(b)
		if err != nil {
			t.Fatalf("frame: %v", err)
		}
		return f
	}

	first := read()
	origin, _ := w.Meshes().Get(mathx.V3(0, 0, 0))
	if first.X != 0 || first.Y != 0 || first.Z != 0 || len(first.Vertices) != len(origin.Vertices) || len(first.Indices) != len(origin.Indices) {
		t.Fatalf("first frame at %d,%d,%d with %d vertices", first.X, first.Y, first.Z, len(first.Vertices))
	}

	// Wait for the handler to be past its initial listing.
	deadline := time.Now().Add(5 * time.Second)
	for w.Meshes().Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber registered")
		}
		time.Sleep(time.Millisecond)
	}
	w.Meshes().Publish(&mesh.Mesh{Pos: mathx.V3(3, -1, 2)})
	next := read()
	if next.X != 3 || next.Y != -1 || next.Z != 2 || len(next.Vertices) != 0 {
		t.Fatalf("second frame: %+v", next)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w, srv := newFeed(t)
	w.StepOnce()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		World world.WorldMetrics `json:"world"`
		Feed  FeedMetrics        `json:"feed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.World.Tick != 1 || body.Feed.Subscribers != 0 {
		t.Fatalf("metrics: %+v", body)
	}
}
