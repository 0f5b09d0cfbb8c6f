// Package sched runs bounded-concurrency chunk work. Each poll drains
// finished jobs, then starts new ones from a due-time table without ever
// waiting on a running job.
package sched

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/atomic"

	"morphvox.dev/internal/sim/mathx"
)

// Handler wires a scheduler to its phase. Acquire gathers the job input
// and reports false when a dependency is missing; Run executes on a pool
// worker; Complete runs on the polling goroutine.
type Handler[In, Out any] struct {
	Acquire  func(pos mathx.Vec3i) (In, bool)
	Run      func(pos mathx.Vec3i, in In) Out
	Complete func(pos mathx.Vec3i, out Out)
}

type Config struct {
	Name       string
	Capacity   int
	RetryDelay time.Duration
	Logger     *log.Logger
}

type Stats struct {
	Queued    int    `json:"queued"`
	InFlight  int    `json:"in_flight"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Retried   uint64 `json:"retried"`
	Failed    uint64 `json:"failed"`
}

// PollResult counts what a single poll did.
type PollResult struct {
	Completed int `json:"completed"`
	Submitted int `json:"submitted"`
	Retried   int `json:"retried"`
}

type result[Out any] struct {
	pos    mathx.Vec3i
	out    Out
	failed bool
}

type Scheduler[In, Out any] struct {
	name       string
	capacity   int
	retryDelay time.Duration
	logger     *log.Logger

	table Table
	pool  pond.Pool
	h     Handler[In, Out]

	// Sized to capacity so a finishing worker never blocks.
	done chan result[Out]

	mu       sync.RWMutex
	inFlight map[mathx.Vec3i]struct{}
	// Entries the table refused on requeue, retried every poll.
	stranded []Entry

	submitted atomic.Uint64
	completed atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
}

func New[In, Out any](cfg Config, table Table, pool pond.Pool, h Handler[In, Out]) *Scheduler[In, Out] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler[In, Out]{
		name:       cfg.Name,
		capacity:   cfg.Capacity,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		table:      table,
		pool:       pool,
		h:          h,
		done:       make(chan result[Out], cfg.Capacity),
		inFlight:   map[mathx.Vec3i]struct{}{},
	}
}

func (s *Scheduler[In, Out]) Name() string { return s.name }

// Enqueue schedules pos at due. Positions already queued are left alone.
func (s *Scheduler[In, Out]) Enqueue(pos mathx.Vec3i, due time.Time) (bool, error) {
	return s.table.Insert(Entry{Pos: pos, Due: due})
}

// Poll drains finished jobs and starts due ones. Entries taken from the
// table are never lost: a failed requeue keeps the entry in memory and
// it is offered to the table again on the next poll.
func (s *Scheduler[In, Out]) Poll(now time.Time) (PollResult, error) {
	var res PollResult
	res.Completed = s.drain()

	var errs []error
	if err := s.restoreStranded(); err != nil {
		errs = append(errs, err)
	}

	free := s.capacity - s.InFlight()
	if free <= 0 {
		return res, errors.Join(errs...)
	}
	entries, err := s.table.Take(now, free)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: take: %w", s.name, err))
		return res, errors.Join(errs...)
	}
	retryAt := now.Add(s.retryDelay)
	for _, e := range entries {
		if s.isInFlight(e.Pos) {
			if err := s.requeue(e.Pos, retryAt); err != nil {
				errs = append(errs, err)
			}
			res.Retried++
			continue
		}
		in, ok := s.h.Acquire(e.Pos)
		if !ok {
			if err := s.requeue(e.Pos, retryAt); err != nil {
				errs = append(errs, err)
			}
			res.Retried++
			continue
		}
		s.submit(e.Pos, in)
		res.Submitted++
	}
	return res, errors.Join(errs...)
}

// restoreStranded reinserts entries whose requeue failed earlier.
func (s *Scheduler[In, Out]) restoreStranded() error {
	s.mu.Lock()
	pending := s.stranded
	s.stranded = nil
	s.mu.Unlock()

	var errs []error
	var keep []Entry
	for _, e := range pending {
		if _, err := s.table.Insert(e); err != nil {
			keep = append(keep, e)
			errs = append(errs, fmt.Errorf("%s: requeue %v: %w", s.name, e.Pos, err))
		}
	}
	if len(keep) > 0 {
		s.mu.Lock()
		s.stranded = append(s.stranded, keep...)
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Scheduler[In, Out]) drain() int {
	n := 0
	for {
		select {
		case r := <-s.done:
			s.mu.Lock()
			delete(s.inFlight, r.pos)
			s.mu.Unlock()
			if r.failed {
				s.failed.Add(1)
				continue
			}
			s.h.Complete(r.pos, r.out)
			s.completed.Add(1)
			n++
		default:
			return n
		}
	}
}

func (s *Scheduler[In, Out]) requeue(pos mathx.Vec3i, at time.Time) error {
	s.retried.Add(1)
	e := Entry{Pos: pos, Due: at}
	if _, err := s.table.Insert(e); err != nil {
		s.mu.Lock()
		s.stranded = append(s.stranded, e)
		s.mu.Unlock()
		return fmt.Errorf("%s: requeue %v: %w", s.name, pos, err)
	}
	return nil
}

func (s *Scheduler[In, Out]) submit(pos mathx.Vec3i, in In) {
	s.mu.Lock()
	s.inFlight[pos] = struct{}{}
	s.mu.Unlock()
	s.submitted.Add(1)

	s.pool.Submit(func() {
		r := result[Out]{pos: pos}
		defer func() {
			if p := recover(); p != nil {
				s.logger.Printf("%s: job %v panicked: %v", s.name, pos, p)
				r.failed = true
			}
			s.done <- r
		}()
		r.out = s.h.Run(pos, in)
	})
}

func (s *Scheduler[In, Out]) isInFlight(pos mathx.Vec3i) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inFlight[pos]
	return ok
}

func (s *Scheduler[In, Out]) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inFlight)
}

func (s *Scheduler[In, Out]) Queued() int {
	s.mu.RLock()
	n := len(s.stranded)
	s.mu.RUnlock()
	queued, err := s.table.Len()
	if err != nil {
		s.logger.Printf("%s: queue length: %v", s.name, err)
		return n
	}
	return n + queued
}

// Idle reports whether nothing is queued or running.
func (s *Scheduler[In, Out]) Idle() bool {
	return s.InFlight() == 0 && s.Queued() == 0
}

func (s *Scheduler[In, Out]) Stats() Stats {
	return Stats{
		Queued:    s.Queued(),
		InFlight:  s.InFlight(),
		Submitted: s.submitted.Load(),
		Completed: s.completed.Load(),
		Retried:   s.retried.Load(),
		Failed:    s.failed.Load(),
	}
}
