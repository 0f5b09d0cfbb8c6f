package main

import (
	"fmt"
	"sort"

	persistlog "morphvox.dev/internal/persistence/log"
	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/catalogs"
	"morphvox.dev/internal/sim/mathx"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world"
	"morphvox.dev/internal/sim/world/mesh"
	"morphvox.dev/internal/sim/world/terrain/store"
)

type Result struct {
	Chunks        int
	Meshes        int
	SkippedMeshes int
	DigestDrift   []string
	Mismatches    []string
}

// Verify regenerates every snapshot chunk and rebuilds every snapshot mesh
// whose neighborhood is present, reporting any difference.
func Verify(snap snapshot.SnapshotV1, cats *catalogs.Catalogs) (Result, error) {
	var res Result
	for name, want := range map[string]string{
		"blocks":  cats.Digests.Blocks,
		"palette": cats.Digests.Palette,
		"world":   cats.Digests.World,
		"noise":   cats.Digests.Noise,
	} {
		if got := snap.Digests[name]; got != "" && got != want {
			res.DigestDrift = append(res.DigestDrift, name)
		}
	}
	sort.Strings(res.DigestDrift)

	enc, err := voxel.ParseEncoding(snap.Encoding)
	if err != nil {
		return res, err
	}
	chunks, err := store.ImportChunks(enc, snap.Chunks)
	if err != nil {
		return res, err
	}
	w, err := world.New(world.WorldConfig{ID: snap.Header.WorldID, Encoding: enc, Workers: 1}, cats, world.Options{})
	if err != nil {
		return res, err
	}
	defer w.Close()

	for _, pos := range chunks.Positions() {
		stored, _ := chunks.Get(pos)
		if w.Generator().Generate(pos).Digest() != stored.Digest() {
			res.Mismatches = append(res.Mismatches, fmt.Sprintf("chunk %s regenerates differently", pos))
		}
		res.Chunks++
	}

	for _, m := range snap.Meshes {
		pos := mathx.V3(m.Pos[0], m.Pos[1], m.Pos[2])
		n, ok := chunks.Neighborhood(pos)
		if !ok {
			res.SkippedMeshes++
			continue
		}
		rebuilt := mesh.Build(pos, n, w.Registry().IsMeshable)
		if !equalU32(rebuilt.Vertices, m.Vertices) || !equalU32(rebuilt.Indices, m.Indices) {
			res.Mismatches = append(res.Mismatches, fmt.Sprintf("mesh %s rebuilds differently", pos))
		}
		res.Meshes++
	}
	return res, nil
}

func equalU32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type TickSummary struct {
	Entries   int
	First     uint64
	Last      uint64
	Gaps      int
	Generated int
	Meshed    int
	Retries   int
	MaxStepMS float64

	rateSum float64
}

func (s TickSummary) MeanTickRate() float64 {
	if s.Entries == 0 {
		return 0
	}
	return s.rateSum / float64(s.Entries)
}

// SummarizeTicks folds tick log entries in [fromTick, toTick]; toTick 0
// means no upper bound.
func SummarizeTicks(files []string, fromTick, toTick uint64) (TickSummary, error) {
	var s TickSummary
	for _, path := range files {
		if err := summarizeFile(&s, path, fromTick, toTick); err != nil {
			return s, err
		}
	}
	return s, nil
}

func summarizeFile(s *TickSummary, path string, fromTick, toTick uint64) error {
	return persistlog.ReadFile(path, func(e world.TickLogEntry) error {
		if e.Tick < fromTick || (toTick != 0 && e.Tick > toTick) {
			return nil
		}
		if s.Entries == 0 {
			s.First = e.Tick
		} else if e.Tick != s.Last+1 {
			s.Gaps++
		}
		s.Last = e.Tick
		s.Entries++
		s.Generated += e.Generated
		s.Meshed += e.Meshed
		s.Retries += e.Retries
		s.rateSum += e.TickRate
		if e.StepMS > s.MaxStepMS {
			s.MaxStepMS = e.StepMS
		}
		return nil
	})
}
