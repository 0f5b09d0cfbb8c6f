package mesh

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	snapv1 "morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/mathx"
)

// Table holds the latest published mesh per chunk position. Publishing
// replaces the entry whole and fans the mesh out to subscribers.
type Table struct {
	mu     sync.RWMutex
	meshes map[mathx.Vec3i]*Mesh
	subs   map[uuid.UUID]chan *Mesh
}

func NewTable() *Table {
	return &Table{
		meshes: map[mathx.Vec3i]*Mesh{},
		subs:   map[uuid.UUID]chan *Mesh{},
	}
}

func (t *Table) Publish(m *Mesh) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.meshes[m.Pos] = m
	for id, ch := range t.subs {
		select {
		case ch <- m:
		default:
			// Subscriber fell behind; closing tells it to resync.
			close(ch)
			delete(t.subs, id)
		}
	}
}

// Subscribe registers a receiver for meshes published from now on. The
// channel is closed when the subscriber falls more than buf meshes behind
// or cancels.
func (t *Table) Subscribe(buf int) (uuid.UUID, <-chan *Mesh, func()) {
	if buf <= 0 {
		buf = 1
	}
	id := uuid.New()
	ch := make(chan *Mesh, buf)
	t.mu.Lock()
	t.subs[id] = ch
	t.mu.Unlock()
	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			close(c)
			delete(t.subs, id)
		}
	}
	return id, ch, cancel
}

func (t *Table) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

func (t *Table) Get(pos mathx.Vec3i) (*Mesh, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.meshes[pos]
	return m, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.meshes)
}

// All returns the current meshes in position order.
func (t *Table) All() []*Mesh {
	t.mu.RLock()
	out := make([]*Mesh, 0, len(t.meshes))
	for _, m := range t.meshes {
		out = append(out, m)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

func (t *Table) Export() []snapv1.MeshV1 {
	all := t.All()
	out := make([]snapv1.MeshV1, 0, len(all))
	for _, m := range all {
		out = append(out, snapv1.MeshV1{
			Pos:      m.Pos.ToArray(),
			Vertices: append([]uint32(nil), m.Vertices...),
			Indices:  append([]uint32(nil), m.Indices...),
		})
	}
	return out
}

// Import loads snapshot meshes without notifying subscribers.
func (t *Table) Import(meshes []snapv1.MeshV1) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range meshes {
		m := &Mesh{
			Pos:      mathx.V3(s.Pos[0], s.Pos[1], s.Pos[2]),
			Vertices: append([]uint32(nil), s.Vertices...),
			Indices:  append([]uint32(nil), s.Indices...),
		}
		t.meshes[m.Pos] = m
	}
}
