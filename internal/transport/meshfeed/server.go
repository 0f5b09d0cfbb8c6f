// Package meshfeed serves published chunk meshes to a local renderer.
package meshfeed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"morphvox.dev/internal/protocol"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world"
	"morphvox.dev/internal/sim/world/mesh"
)

// DefaultSubscriberBuffer is how many published meshes may wait for a slow
// client before it is disconnected.
const DefaultSubscriberBuffer = 1024

const writeWait = 5 * time.Second

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader  websocket.Upgrader
	subBuffer int

	active      atomic.Int64
	framesSent  atomic.Uint64
	disconnects atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
		subBuffer: DefaultSubscriberBuffer,
	}
}

// Register mounts the feed's endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/meshes", s.MeshesHandler())
	mux.HandleFunc("/metrics", s.MetricsHandler())
}

// Bootstrap describes everything a renderer needs to decode mesh frames.
func (s *Server) Bootstrap() protocol.BootstrapMsg {
	cfg := s.world.Config()
	cats := s.world.Catalogs()

	layout := mesh.VertexLayout()
	fields := make([]protocol.VertexField, 0, len(layout))
	for _, f := range layout {
		fields = append(fields, protocol.VertexField{Name: f.Name, Shift: f.Shift, Bits: f.Bits})
	}
	faces := make([]protocol.FaceInfo, 0, len(mesh.Directions))
	for _, d := range mesh.Directions {
		faces = append(faces, protocol.FaceInfo{Index: int(d), Name: d.String(), Normal: d.NormalF()})
	}
	blocks := s.world.Registry().Blocks()
	palette := make([]protocol.BlockInfo, 0, len(blocks))
	for _, b := range blocks {
		palette = append(palette, protocol.BlockInfo{ID: b.ID, Name: b.Name, Model: string(b.Model.Kind), Texture: b.Model.Texture})
	}
	hz := 1
	if cfg.TickInterval > 0 && cfg.TickInterval < time.Second {
		hz = int(time.Second / cfg.TickInterval)
	}

	return protocol.BootstrapMsg{
		Type:            protocol.TypeBootstrap,
		ProtocolVersion: protocol.Version,
		WorldID:         cfg.ID,
		Tick:            s.world.CurrentTick(),
		ChunkSize:       voxel.Size,
		VertexLayout:    fields,
		Faces:           faces,
		World: protocol.WorldParams{
			ChunkRange:       cats.World.ChunkRange,
			ChunkHeightRange: cats.World.ChunkHeightRange,
			ChunkBottomRange: cats.World.ChunkBottomRange,
			RangeRender:      cats.World.RangeRender,
			TickRateHz:       hz,
		},
		Palette: palette,
		Digests: map[string]string{
			"blocks":  cats.Digests.Blocks,
			"palette": cats.Digests.Palette,
			"world":   cats.Digests.World,
			"noise":   cats.Digests.Noise,
		},
		MeshFrame: protocol.MeshFrameMagic,
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allow(rw, r) {
			return
		}
		writeJSON(rw, http.StatusOK, s.Bootstrap())
	}
}

// FeedMetrics is exposed next to the world metrics on /metrics.
type FeedMetrics struct {
	Subscribers int    `json:"subscribers"`
	FramesSent  uint64 `json:"frames_sent"`
	Disconnects uint64 `json:"slow_disconnects"`
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allow(rw, r) {
			return
		}
		writeJSON(rw, http.StatusOK, struct {
			World world.WorldMetrics `json:"world"`
			Feed  FeedMetrics        `json:"feed"`
		}{
			World: s.world.Metrics(),
			Feed: FeedMetrics{
				Subscribers: int(s.active.Load()),
				FramesSent:  s.framesSent.Load(),
				Disconnects: s.disconnects.Load(),
			},
		})
	}
}

// MeshesHandler streams every current mesh, then each newly published one,
// as binary frames. A client that falls behind is disconnected and is
// expected to reconnect, which resends the full set.
func (s *Server) MeshesHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allow(rw, r) {
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Subscribe before listing so nothing published in between is lost.
		id, updates, cancelSub := s.world.Meshes().Subscribe(s.subBuffer)
		defer cancelSub()
		s.active.Add(1)
		defer s.active.Add(-1)
		s.log.Printf("mesh subscriber %s connected from %s", id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader: only control frames are expected; a read error means the
		// client went away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for _, m := range s.world.Meshes().All() {
			if err := s.writeMesh(conn, m); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-updates:
				if !ok {
					s.disconnects.Add(1)
					s.log.Printf("mesh subscriber %s fell behind; disconnecting", id)
					closeWith(conn, websocket.CloseTryAgainLater, protocol.ErrSlowConsumer)
					return
				}
				if err := s.writeMesh(conn, m); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) writeMesh(conn *websocket.Conn, m *mesh.Mesh) error {
	b := protocol.EncodeMeshFrame(protocol.MeshFrame{
		X:        int32(m.Pos.X),
		Y:        int32(m.Pos.Y),
		Z:        int32(m.Pos.Z),
		Vertices: m.Vertices,
		Indices:  m.Indices,
	})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return err
	}
	s.framesSent.Add(1)
	return nil
}

func (s *Server) allow(rw http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeJSON(rw, http.StatusMethodNotAllowed, protocol.NewError(protocol.ErrProtoBadRequest, "method not allowed"))
		return false
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		writeJSON(rw, http.StatusForbidden, protocol.NewError(protocol.ErrForbidden, "loopback clients only"))
		return false
	}
	return true
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
