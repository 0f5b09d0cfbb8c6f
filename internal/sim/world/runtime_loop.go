package world

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			if _, err := w.Tick(w.system); err != nil {
				w.logger.Printf("tick: %v", err)
			}
		}
	}
}

// Tick advances both scheduling phases once. Only the world's own system
// identity may call it; anything else gets ErrUnauthorizedTick and the
// world is left untouched.
func (w *World) Tick(caller uuid.UUID) (uint64, error) {
	if caller != w.system {
		return w.tick.Load(), ErrUnauthorizedTick
	}
	w.stepMu.Lock()
	defer w.stepMu.Unlock()
	return w.stepInternal(time.Now()), nil
}

// StepOnce advances the world by a single tick as its own driver would.
// It is primarily intended for tools and tests that drive the loop by hand.
func (w *World) StepOnce() uint64 {
	tick, _ := w.Tick(w.system)
	return tick
}

func (w *World) stepInternal(now time.Time) uint64 {
	stepStart := time.Now()
	if !w.lastTick.IsZero() {
		if dt := now.Sub(w.lastTick).Seconds(); dt > 0 {
			w.tickRate.Store(1 / dt)
		}
	}
	w.lastTick = now
	w.generated, w.meshed = 0, 0

	genRes, err := w.genSched.Poll(now)
	if err != nil {
		w.logger.Printf("generate poll: %v", err)
	}
	meshRes, err := w.meshSched.Poll(now)
	if err != nil {
		w.logger.Printf("mesh poll: %v", err)
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.stepMS.Store(stepMS)
	nextTick := w.tick.Add(1)

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && nextTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		w.offerSnapshot(nextTick)
	}

	genStats, meshStats := w.genSched.Stats(), w.meshSched.Stats()
	w.metrics.Store(WorldMetrics{
		Tick:         nextTick,
		TickRate:     w.tickRate.Load(),
		StepMS:       stepMS,
		LoadedChunks: w.chunks.Len(),
		Meshes:       w.meshes.Len(),
		QueueDepths:  QueueDepths{Generate: genStats.Queued, Mesh: meshStats.Queued},
		InFlight:     QueueDepths{Generate: genStats.InFlight, Mesh: meshStats.InFlight},
		Generation:   genStats,
		Meshing:      meshStats,
		Snapshots:    SnapshotCounts{Queued: w.snapsQueued.Load(), Skipped: w.snapsSkipped.Load()},
	})

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:      nextTick,
			TickRate:  w.tickRate.Load(),
			StepMS:    stepMS,
			Generated: w.generated,
			Meshed:    w.meshed,
			Retries:   genRes.Retried + meshRes.Retried,
			GenQueue:  genStats.Queued,
			MeshQueue: meshStats.Queued,
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logger.Printf("tick log: %v", err)
		}
	}

	return nextTick
}

// offerSnapshot hands a snapshot to the sink. The step goroutine is the only
// sender, so a buffered sink with room cannot fill before the send; a full
// sink skips the tick without copying the world.
func (w *World) offerSnapshot(tick uint64) {
	if c := cap(w.snapshotSink); c > 0 && len(w.snapshotSink) >= c {
		w.snapsSkipped.Inc()
		w.logger.Printf("snapshot sink backpressure; skipped tick %d", tick)
		return
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot():
		w.snapsQueued.Inc()
	default:
		w.snapsSkipped.Inc()
		w.logger.Printf("snapshot sink backpressure; skipped tick %d", tick)
	}
}
