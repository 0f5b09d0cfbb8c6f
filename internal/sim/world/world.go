package world

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/sched"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/gen"
	"morphvox.dev/internal/sim/world/terrain/store"
)

type WorldConfig struct {
	ID           string
	TickInterval time.Duration

	// MaxTasks caps in-flight jobs per phase.
	MaxTasks   int
	Workers    int
	RetryDelay time.Duration
	Encoding   voxel.Encoding

	GenerateRadius int
	MeshRadius     int

	SnapshotEveryTicks int
	PersistChunks      bool
}

// Options carries optional collaborators. Nil fields fall back to
// in-memory or no-op behavior.
type Options struct {
	Logger     *log.Logger
	Sink       ChunkSink
	TickLogger TickLogger

	GenTable  sched.Table
	MeshTable sched.Table

	// Snapshot writing happens off the tick goroutine.
	SnapshotSink chan<- snapshot.SnapshotV1
}

// World owns every piece of engine state. Nothing is process-global, so
// several worlds can coexist in one process.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	registry *catalogs.Registry
	gen      *gen.Generator

	chunks *store.ChunkStore
	meshes *mesh.Table

	pool      pond.Pool
	genSched  *sched.Scheduler[struct{}, *store.Chunk]
	meshSched *sched.Scheduler[*store.Neighborhood, *mesh.Mesh]

	// system is the only identity allowed to advance the world.
	system uuid.UUID

	stepMu   sync.Mutex
	lastTick time.Time
	tick     atomic.Uint64
	tickRate *atomic.Float64
	stepMS   *atomic.Float64

	snapsQueued  atomic.Uint64
	snapsSkipped atomic.Uint64

	// Per-tick counters, written by scheduler completions on the tick goroutine.
	generated int
	meshed    int

	metrics atomic.Value

	logger       *log.Logger
	sink         ChunkSink
	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, opts Options) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Encoding == "" {
		cfg.Encoding = voxel.EncodingPacked
	}

	bank, err := cats.Noise.Bank()
	if err != nil {
		return nil, fmt.Errorf("noise bank: %w", err)
	}
	fields, err := gen.FieldsFrom(bank)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w := &World{
		cfg:          cfg,
		catalogs:     cats,
		registry:     cats.Blocks,
		gen:          gen.New(cats.World, fields, gen.BlocksFrom(cats.Blocks), cfg.Encoding),
		chunks:       store.NewChunkStore(cfg.Encoding),
		meshes:       mesh.NewTable(),
		pool:         pond.NewPool(cfg.Workers),
		system:       uuid.New(),
		tickRate:     atomic.NewFloat64(0),
		stepMS:       atomic.NewFloat64(0),
		logger:       logger,
		sink:         opts.Sink,
		tickLogger:   opts.TickLogger,
		snapshotSink: opts.SnapshotSink,
		stop:         make(chan struct{}),
	}

	genTable, meshTable := opts.GenTable, opts.MeshTable
	if genTable == nil {
		genTable = sched.NewMemTable()
	}
	if meshTable == nil {
		meshTable = sched.NewMemTable()
	}
	w.genSched = sched.New(sched.Config{
		Name:       "generate",
		Capacity:   cfg.MaxTasks,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	}, genTable, w.pool, w.generationHandler())
	w.meshSched = sched.New(sched.Config{
		Name:       "mesh",
		Capacity:   cfg.MaxTasks,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	}, meshTable, w.pool, w.meshHandler())

	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) ID() string                   { return w.cfg.ID }
func (w *World) Config() WorldConfig          { return w.cfg }
func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }
func (w *World) Chunks() *store.ChunkStore    { return w.chunks }
func (w *World) Meshes() *mesh.Table          { return w.meshes }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) TickRate() float64            { return w.tickRate.Load() }
func (w *World) Generator() *gen.Generator    { return w.gen }
func (w *World) BlockPalette() []string       { return w.registry.Palette() }
func (w *World) GenerationStats() sched.Stats { return w.genSched.Stats() }
func (w *World) MeshStats() sched.Stats       { return w.meshSched.Stats() }
func (w *World) Registry() *catalogs.Registry { return w.registry }

// Idle reports whether both phases have drained.
func (w *World) Idle() bool {
	return w.genSched.Idle() && w.meshSched.Idle()
}

// Stop ends Run. It is safe to call more than once.
func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Close stops the loop and waits for running jobs to finish.
func (w *World) Close() {
	w.Stop()
	w.pool.StopAndWait()
}
