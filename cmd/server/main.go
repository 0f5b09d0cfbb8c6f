package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"morphvox.dev/internal/persistence/indexdb"
	persistlog "morphvox.dev/internal/persistence/log"
	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/tuning"
	"morphvox.dev/internal/sim/world"
	"morphvox.dev/internal/transport/meshfeed"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (chunks, meshes and schedules stay in memory)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	const logFlags = log.LstdFlags | log.Lmicroseconds
	logger := log.New(os.Stdout, "[server] ", logFlags)

	cats := catalogs.Load(*configDir, log.New(os.Stdout, "[catalogs] ", logFlags))

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, found, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if !found {
		logger.Printf("tuning not found (%s); using defaults", tp)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(worldDir, "index.sqlite"), log.New(os.Stdout, "[indexdb] ", logFlags))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if prev, ok, err := idx.CatalogDigest("blocks_palette"); err == nil && ok && prev != cats.Digests.Palette {
			logger.Printf("block palette changed since last run; persisted chunks may use stale ids")
		}
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir, persistlog.WithFlushInterval(time.Second))
	defer tickLog.Close()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	opts := world.Options{
		Logger:       log.New(os.Stdout, "[world] ", logFlags),
		TickLogger:   tickLog,
		SnapshotSink: snapCh,
	}
	if idx != nil {
		opts.Sink = idx
		opts.GenTable = idx.GenSchedule()
		opts.MeshTable = idx.MeshSchedule()
	}
	w, err := world.New(world.WorldConfig{
		ID:                 *worldID,
		TickInterval:       tune.TickInterval(),
		MaxTasks:           tune.MaxTasks,
		Workers:            tune.Workers,
		RetryDelay:         tune.RetryDelay(),
		Encoding:           tune.Encoding(),
		GenerateRadius:     tune.Bootstrap.GenerateRadius,
		MeshRadius:         tune.Bootstrap.MeshRadius,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		PersistChunks:      tune.Persist(),
	}, cats, opts)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	defer w.Close()

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}
	if idx != nil {
		chunks, err := idx.LoadChunks()
		if err != nil {
			logger.Fatalf("index: load chunks: %v", err)
		}
		meshes, err := idx.LoadMeshes()
		if err != nil {
			logger.Fatalf("index: load meshes: %v", err)
		}
		w.Restore(chunks, meshes)
		if len(chunks) > 0 {
			logger.Printf("restored %d chunks, %d meshes from index", len(chunks), len(meshes))
		}
	}

	if _, _, err := w.Bootstrap(time.Now()); err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	writeSnap := func(snap snapshot.SnapshotV1) {
		path := snapshot.Path(worldDir, snap.Header.Tick)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
		logger.Printf("snapshot tick=%d chunks=%d meshes=%d", snap.Header.Tick, len(snap.Chunks), len(snap.Meshes))
	}
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnap(snap)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	meshfeed.NewServer(w, log.New(os.Stdout, "[meshfeed] ", logFlags)).Register(mux)

	if envBool("MV_ENABLE_ADMIN_HTTP", true) {
		registerAdmin(mux, w, snapCh)
	} else {
		logger.Printf("admin endpoints disabled (MV_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("MV_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	cancel()
	<-runDone
	<-snapDone
	// Final snapshot so a restart resumes from the last tick.
	writeSnap(w.ExportSnapshot())
	logger.Printf("stopped at tick %d", w.CurrentTick())
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
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

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
