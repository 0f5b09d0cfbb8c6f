// Command inspect summarizes a world snapshot and prints a top-down
// heightmap of its terrain.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"morphvox.dev/internal/persistence/snapshot"
	"morphvox.dev/internal/sim/voxel"
	"morphvox.dev/internal/sim/world/terrain/store"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to a .snap.zst file")
		minCY    = flag.Int("min_cy", -4, "lowest chunk y to scan")
		maxCY    = flag.Int("max_cy", 4, "highest chunk y to scan")
		step     = flag.Int("step", 2, "sample every n-th block column")
		noColor  = flag.Bool("no_color", false, "disable colored output")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)
	if *snapPath == "" {
		logger.Fatalf("-snapshot is required")
	}
	if *noColor {
		color.NoColor = true
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		logger.Fatalf("read snapshot: %v", err)
	}
	chunks, err := store.ImportChunks(voxel.EncodingPacked, snap.Chunks)
	if err != nil {
		logger.Fatalf("import chunks: %v", err)
	}

	summarize(os.Stdout, snap, chunks)
	BuildHeightmap(chunks, *minCY, *maxCY, *step).Render(os.Stdout)
}

func summarize(out *os.File, snap snapshot.SnapshotV1, chunks *store.ChunkStore) {
	empty := 0
	chunks.Each(func(ch *store.Chunk) bool {
		if voxel.IsEmpty(ch.Blocks) {
			empty++
		}
		return true
	})
	quads := 0
	for _, m := range snap.Meshes {
		quads += len(m.Vertices) / 4
	}
	bold := color.New(color.Bold)
	bold.Fprintf(out, "world %s tick %d\n", snap.Header.WorldID, snap.Header.Tick)
	fmt.Fprintf(out, "chunks: %d (%d all air), encoding %s\n", chunks.Len(), empty, snap.Encoding)
	fmt.Fprintf(out, "meshes: %d, %d quads\n", len(snap.Meshes), quads)
	for _, k := range []string{"blocks", "palette", "world", "noise"} {
		if d := snap.Digests[k]; d != "" {
			fmt.Fprintf(out, "digest %-8s %s\n", k, d)
		}
	}
}
