package sched

import (
	"sort"
	"sync"
	"time"

	"morphvox.dev/internal/sim/mathx"
)

// Entry is a deferred unit of work for one chunk position.
type Entry struct {
	Pos mathx.Vec3i
	Due time.Time
}

// Table holds at most one pending entry per position.
type Table interface {
	// Insert queues e unless its position is already queued.
	Insert(e Entry) (bool, error)
	// Take removes and returns up to limit entries due at or before now,
	// earliest first.
	Take(now time.Time, limit int) ([]Entry, error)
	Len() (int, error)
}

type MemTable struct {
	mu      sync.Mutex
	entries map[mathx.Vec3i]time.Time
}

func NewMemTable() *MemTable {
	return &MemTable{entries: map[mathx.Vec3i]time.Time{}}
}

func (t *MemTable) Insert(e Entry) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[e.Pos]; ok {
		return false, nil
	}
	t.entries[e.Pos] = e.Due
	return true, nil
}

func (t *MemTable) Take(now time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []Entry
	for pos, at := range t.entries {
		if !at.After(now) {
			due = append(due, Entry{Pos: pos, Due: at})
		}
	}
	SortEntries(due)
	if len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		delete(t.entries, e.Pos)
	}
	return due, nil
}

func (t *MemTable) Len() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries), nil
}

// SortEntries orders by due time, then position, so draining is stable.
func SortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].Due.Equal(es[j].Due) {
			return es[i].Due.Before(es[j].Due)
		}
		return es[i].Pos.Less(es[j].Pos)
	})
}
