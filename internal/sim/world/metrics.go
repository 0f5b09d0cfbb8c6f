package world

import "morphvox.dev/internal/sim/sched"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick     uint64  `json:"tick"`
	TickRate float64 `json:"tick_rate"`
	StepMS   float64 `json:"step_ms"`

	LoadedChunks int `json:"loaded_chunks"`
	Meshes       int `json:"meshes"`

	QueueDepths QueueDepths `json:"queue_depths"`
	InFlight    QueueDepths `json:"in_flight"`

	Generation sched.Stats `json:"generation"`
	Meshing    sched.Stats `json:"meshing"`

	Snapshots SnapshotCounts `json:"snapshots"`
}

type SnapshotCounts struct {
	Queued  uint64 `json:"queued"`
	Skipped uint64 `json:"skipped"`
}

type QueueDepths struct {
	Generate int `json:"generate"`
	Mesh     int `json:"mesh"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
