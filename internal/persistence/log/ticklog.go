// Package log records one JSON line per engine tick in hourly zstd files
// under <worldDir>/events, and reads them back for offline tools.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"morphvox.dev/internal/sim/world"
)

const (
	filePrefix = "events-"
	fileSuffix = ".jsonl.zst"
	hourLayout = "2006-01-02-15"
)

type Option func(*TickLogger)

// WithClock replaces time.Now when choosing the hourly file.
func WithClock(now func() time.Time) Option {
	return func(l *TickLogger) { l.now = now }
}

// WithFlushInterval bounds how long entries sit in the compressor before
// reaching disk. Zero flushes after every tick.
func WithFlushInterval(d time.Duration) Option {
	return func(l *TickLogger) { l.flushEvery = d }
}

// TickLogger implements world.TickLogger.
type TickLogger struct {
	dir        string
	now        func() time.Time
	flushEvery time.Duration

	mu        sync.Mutex
	hour      string
	f         *os.File
	enc       *zstd.Encoder
	buf       *bufio.Writer
	lastFlush time.Time
}

var _ world.TickLogger = (*TickLogger)(nil)

func NewTickLogger(worldDir string, opts ...Option) *TickLogger {
	l := &TickLogger{dir: EventsDir(worldDir), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// EventsDir is where a world's tick log lives.
func EventsDir(worldDir string) string { return filepath.Join(worldDir, "events") }

func (l *TickLogger) WriteTick(e world.TickLogEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("tick %d: %w", e.Tick, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if hour := now.UTC().Format(hourLayout); hour != l.hour {
		if err := l.openLocked(hour); err != nil {
			return err
		}
	}
	line = append(line, '\n')
	if _, err := l.buf.Write(line); err != nil {
		return fmt.Errorf("tick %d: %w", e.Tick, err)
	}
	if l.flushEvery > 0 && now.Sub(l.lastFlush) < l.flushEvery {
		return nil
	}
	l.lastFlush = now
	return l.buf.Flush()
}

// openLocked finishes the current hour's frame and appends a new frame to
// the file for hour. Concatenated zstd frames decode as one stream.
func (l *TickLogger) openLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(l.dir, filePrefix+hour+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.enc, l.buf, l.hour = f, enc, bufio.NewWriterSize(enc, 64*1024), hour
	return nil
}

func (l *TickLogger) closeLocked() error {
	if l.f == nil {
		return nil
	}
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	keep(l.buf.Flush())
	keep(l.enc.Close())
	keep(l.f.Close())
	l.f, l.enc, l.buf, l.hour = nil, nil, nil, ""
	return first
}

func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

// Files lists the tick log files in dir, oldest hour first.
func Files(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile calls fn for every entry in one tick log file, in write order.
func ReadFile(path string, fn func(world.TickLogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		var e world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
