package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type snapshotRow struct {
	Tick   int64  `json:"tick"`
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
	Meshes int    `json:"meshes"`
}

type countsRow struct {
	Chunks       int `json:"chunks"`
	Meshes       int `json:"meshes"`
	GenPending   int `json:"gen_pending"`
	MeshPending  int `json:"mesh_pending"`
	GenOverdue   int `json:"gen_overdue"`
	MeshOverdue  int `json:"mesh_overdue"`
	LastSnapshot int `json:"last_snapshot_tick"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

type boundsRow struct {
	Chunks int    `json:"chunks"`
	Min    [3]int `json:"min"`
	Max    [3]int `json:"max"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := querySnapshots(db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "counts":
		r, err := queryCounts(db, time.Now())
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printJSON(r)

	case "catalogs":
		rows, err := queryCatalogs(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "bounds":
		r, err := queryBounds(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printJSON(r)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] snapshots|counts|catalogs|bounds")
		os.Exit(2)
	}
}

func querySnapshots(db *sql.DB, limit int) ([]snapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT tick,path,chunks,meshes FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []snapshotRow
	for rows.Next() {
		var r snapshotRow
		if err := rows.Scan(&r.Tick, &r.Path, &r.Chunks, &r.Meshes); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryCounts reports table sizes. Scheduled entries due at or before now
// count as overdue.
func queryCounts(db *sql.DB, now time.Time) (countsRow, error) {
	var r countsRow
	stmts := []struct {
		q    string
		args []any
		dst  *int
	}{
		{`SELECT COUNT(*) FROM chunks`, nil, &r.Chunks},
		{`SELECT COUNT(*) FROM meshes`, nil, &r.Meshes},
		{`SELECT COUNT(*) FROM gen_schedule`, nil, &r.GenPending},
		{`SELECT COUNT(*) FROM mesh_schedule`, nil, &r.MeshPending},
		{`SELECT COUNT(*) FROM gen_schedule WHERE due_at<=?`, []any{now.UnixMicro()}, &r.GenOverdue},
		{`SELECT COUNT(*) FROM mesh_schedule WHERE due_at<=?`, []any{now.UnixMicro()}, &r.MeshOverdue},
		{`SELECT COALESCE(MAX(tick),0) FROM snapshots`, nil, &r.LastSnapshot},
	}
	for _, s := range stmts {
		if err := db.QueryRow(s.q, s.args...).Scan(s.dst); err != nil {
			return r, fmt.Errorf("%s: %w", s.q, err)
		}
	}
	return r, nil
}

func queryCatalogs(db *sql.DB) ([]catalogRow, error) {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalogRow
	for rows.Next() {
		var r catalogRow
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryBounds reports the chunk-space box covering every stored chunk.
func queryBounds(db *sql.DB) (boundsRow, error) {
	var r boundsRow
	row := db.QueryRow(`SELECT COUNT(*),
		COALESCE(MIN(x),0),COALESCE(MIN(y),0),COALESCE(MIN(z),0),
		COALESCE(MAX(x),0),COALESCE(MAX(y),0),COALESCE(MAX(z),0) FROM chunks`)
	if err := row.Scan(&r.Chunks, &r.Min[0], &r.Min[1], &r.Min[2], &r.Max[0], &r.Max[1], &r.Max[2]); err != nil {
		return r, err
	}
	return r, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
