package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/atomic"
	_ "modernc.org/sqlite"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/tuning"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

// SQLiteIndex persists generated chunks, published meshes and both
// scheduling queues so a world can resume where it stopped.
type SQLiteIndex struct {
	db     *sql.DB
	logger *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64

	zenc *zstd.Encoder
	zdec *zstd.Decoder

	gen  *ScheduleTable
	mesh *ScheduleTable
}

type reqKind int

const (
	reqChunk reqKind = iota + 1
	reqMesh
	reqSnapshot
)

type req struct {
	kind reqKind

	chunk    *store.Chunk
	mesh     *mesh.Mesh
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick   uint64
	Path   string
	Chunks int
	Meshes int
}

// Open creates (or reopens) the index at path. logger may be nil.
func Open(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:     db,
		logger: logger,
		// Bootstrap bursts produce thousands of chunks within a few ticks.
		ch:   make(chan req, 16384),
		zenc: zenc,
		zdec: zdec,
		gen:  &ScheduleTable{db: db, table: "gen_schedule"},
		mesh: &ScheduleTable{db: db, table: "mesh_schedule"},
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			encoding TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS meshes (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			vertices BLOB NOT NULL,
			indices BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS gen_schedule (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			due_at INTEGER NOT NULL,
			UNIQUE (x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_gen_schedule_due ON gen_schedule(due_at);`,
		`CREATE TABLE IF NOT EXISTS mesh_schedule (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			due_at INTEGER NOT NULL,
			UNIQUE (x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mesh_schedule_due ON mesh_schedule(due_at);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			meshes INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// GenSchedule and MeshSchedule back the two scheduling phases.
func (s *SQLiteIndex) GenSchedule() *ScheduleTable  { return s.gen }
func (s *SQLiteIndex) MeshSchedule() *ScheduleTable { return s.mesh }

// Dropped counts writes discarded because the writer fell behind.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		_ = s.zenc.Close()
		s.zdec.Close()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Missing rows are regenerated on the next resume.
		if s.dropped.Add(1)%1000 == 1 {
			s.logger.Printf("indexdb writer behind; dropped %d writes", s.dropped.Load())
		}
	}
}

func (s *SQLiteIndex) SaveChunk(ch *store.Chunk) { s.enqueue(req{kind: reqChunk, chunk: ch}) }
func (s *SQLiteIndex) SaveMesh(m *mesh.Mesh)     { s.enqueue(req{kind: reqMesh, mesh: m}) }

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:   snap.Header.Tick,
		Path:   path,
		Chunks: len(snap.Chunks),
		Meshes: len(snap.Meshes),
	}})
}

// UpsertCatalogs records the catalogs and tuning a run was started with.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		v      any
	}
	rows := []kv{
		{"blocks", cats.Digests.Blocks, cats.Blocks.Blocks()},
		{"blocks_palette", cats.Digests.Palette, cats.Blocks.Palette()},
		{"world", cats.Digests.World, cats.World},
		{"noise", cats.Digests.Noise, cats.Noise.Layers},
		{"tuning", "", tune},
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		b, err := json.Marshal(r.v)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", r.name, err)
		}
		digest := r.digest
		if digest == "" {
			sum := sha256.Sum256(b)
			digest = hex.EncodeToString(sum[:])
		}
		if _, err := stmt.Exec(r.name, digest, string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the digest stored for name by a previous run.
func (s *SQLiteIndex) CatalogDigest(name string) (string, bool, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}

// LoadChunks returns every persisted chunk.
func (s *SQLiteIndex) LoadChunks() ([]*store.Chunk, error) {
	rows, err := s.db.Query(`SELECT x,y,z,encoding,data FROM chunks ORDER BY y,z,x`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Chunk
	for rows.Next() {
		var (
			x, y, z int
			enc     string
			blob    []byte
		)
		if err := rows.Scan(&x, &y, &z, &enc, &blob); err != nil {
			return nil, err
		}
		raw, err := s.zdec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d,%d: %w", x, y, z, err)
		}
		buf, err := voxel.Decode(voxel.Encoding(enc), raw)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d,%d: %w", x, y, z, err)
		}
		out = append(out, &store.Chunk{Pos: mathx.V3(x, y, z), Blocks: buf})
	}
	return out, rows.Err()
}

// LoadMeshes returns every persisted mesh.
func (s *SQLiteIndex) LoadMeshes() ([]*mesh.Mesh, error) {
	rows, err := s.db.Query(`SELECT x,y,z,vertices,indices FROM meshes ORDER BY y,z,x`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*mesh.Mesh
	for rows.Next() {
		var (
			x, y, z int
			vb, ib  []byte
		)
		if err := rows.Scan(&x, &y, &z, &vb, &ib); err != nil {
			return nil, err
		}
		m := &mesh.Mesh{Pos: mathx.V3(x, y, z), Vertices: decodeU32(vb), Indices: decodeU32(ib)}
		if !m.Valid() {
			return nil, fmt.Errorf("mesh %d,%d,%d: corrupt index buffer", x, y, z)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func encodeU32(vs []uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func decodeU32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(x,y,z,encoding,data) VALUES(?,?,?,?,?)`)
	insertMesh, _ := s.db.Prepare(`INSERT OR REPLACE INTO meshes(x,y,z,vertices,indices,updated_at) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,chunks,meshes) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertChunk, insertMesh, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	const batchMax = 256

	write := func(tx *sql.Tx, r req) error {
		switch r.kind {
		case reqChunk:
			if insertChunk == nil {
				return nil
			}
			c := r.chunk
			blob := s.zenc.EncodeAll(c.Blocks.Bytes(), nil)
			_, err := tx.Stmt(insertChunk).Exec(c.Pos.X, c.Pos.Y, c.Pos.Z, string(c.Blocks.Encoding()), blob)
			return err
		case reqMesh:
			if insertMesh == nil {
				return nil
			}
			m := r.mesh
			_, err := tx.Stmt(insertMesh).Exec(m.Pos.X, m.Pos.Y, m.Pos.Z,
				encodeU32(m.Vertices), encodeU32(m.Indices),
				time.Now().UTC().Format(time.RFC3339Nano))
			return err
		case reqSnapshot:
			if insertSnapshot == nil {
				return nil
			}
			sn := r.snapshot
			_, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Tick), sn.Path, sn.Chunks, sn.Meshes)
			return err
		}
		return nil
	}

	// Short transactions keep the schedule tables responsive: the single
	// connection is shared with the tick goroutine.
	for r := range s.ch {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Printf("indexdb begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		batch := []req{r}
	fill:
		for len(batch) < batchMax {
			select {
			case next, ok := <-s.ch:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		failed := false
		for _, b := range batch {
			if err := write(tx, b); err != nil {
				s.logger.Printf("indexdb write: %v", err)
				failed = true
				break
			}
		}
		if failed {
			_ = tx.Rollback()
			continue
		}
		if err := tx.Commit(); err != nil {
			s.logger.Printf("indexdb commit: %v", err)
		}
	}
}
