// Package queue keeps document and ticket vectors fresh. It schedules one
// embedding job per entity, runs jobs on a small worker pool and writes the
// results back through the vector store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fadilmartias/ticket-router/internal/config"
	"github.com/fadilmartias/ticket-router/internal/model"
	"github.com/fadilmartias/ticket-router/internal/repository"
	"github.com/fadilmartias/ticket-router/internal/service"
)

var errJobPanicked = errors.New("embedding job panicked")

// VectorStore is the slice of the vector store adapter a job needs.
type VectorStore interface {
	GetText(ctx context.Context, kind model.EntityKind, id string) (string, error)
	SetVector(ctx context.Context, kind model.EntityKind, id string, vector []float32, updatedAt time.Time) error
}

// JobState is the lifecycle position of the job for one entity.
type JobState string

const (
	StateAbsent  JobState = "absent"
	StatePending JobState = "pending"
	StateRunning JobState = "running"
)

type Stats struct {
	Pending   int   `json:"pending"`
	Running   int   `json:"running"`
	Retrying  int   `json:"retrying"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Coalesced int64 `json:"coalesced"`
}

type job struct {
	key        model.EntityKey
	enqueuedAt time.Time
	attempt    int
	backoff    backoff.BackOff
}

type Option func(*EmbeddingQueue)

// WithClock replaces time.Now as the source of vector timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *EmbeddingQueue) { q.now = now }
}

// EmbeddingQueue coalesces embedding requests per (kind, id) and executes
// them with bounded concurrency. A key stays outstanding from Enqueue until
// its job succeeds or fails terminally, including while it waits for a retry.
type EmbeddingQueue struct {
	store    VectorStore
	embedder service.EmbeddingServiceInterface
	cfg      config.QueueConfig
	now      func() time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []*job
	states   map[model.EntityKey]JobState
	timers   map[model.EntityKey]*time.Timer
	waiters  []chan struct{}
	started  bool
	closed   bool
	running  int
	retrying int
	stats    Stats

	workers sync.WaitGroup
}

func NewEmbeddingQueue(store VectorStore, embedder service.EmbeddingServiceInterface, cfg config.QueueConfig, opts ...Option) *EmbeddingQueue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	q := &EmbeddingQueue{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		now:      time.Now,
		states:   make(map[model.EntityKey]JobState),
		timers:   make(map[model.EntityKey]*time.Timer),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker pool. Jobs enqueued before Start wait for it.
func (q *EmbeddingQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	slog.Info("embedding queue started", "workers", q.cfg.Workers, "max_retries", q.cfg.MaxRetries)
}

// Enqueue schedules an embedding (re)computation and never blocks on the
// job itself. It reports whether a new job was created; false means the key
// was already outstanding (the call was coalesced) or the queue is shut down.
func (q *EmbeddingQueue) Enqueue(kind model.EntityKind, id string) bool {
	key := model.EntityKey{Kind: kind, ID: id}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		slog.Debug("embedding queue closed, ignoring enqueue", "kind", kind, "id", id)
		return false
	}
	if _, ok := q.states[key]; ok {
		q.stats.Coalesced++
		return false
	}
	q.states[key] = StatePending
	q.pending = append(q.pending, &job{
		key:        key,
		enqueuedAt: q.now(),
		backoff:    q.newBackOff(),
	})
	q.cond.Signal()
	return true
}

func (q *EmbeddingQueue) State(kind model.EntityKind, id string) JobState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.states[model.EntityKey{Kind: kind, ID: id}]; ok {
		return s
	}
	return StateAbsent
}

func (q *EmbeddingQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.pending)
	s.Running = q.running
	s.Retrying = q.retrying
	return s
}

// Wait blocks until no job is outstanding or ctx is done.
func (q *EmbeddingQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if len(q.states) == 0 {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and drops the ones not yet started,
// including those waiting for a retry. Running jobs are never cancelled;
// Shutdown waits for them until ctx is done.
func (q *EmbeddingQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	dropped := len(q.pending)
	for _, j := range q.pending {
		delete(q.states, j.key)
	}
	q.pending = nil
	for key, timer := range q.timers {
		// A timer that already fired is finishing in requeue.
		if timer.Stop() {
			delete(q.states, key)
			q.retrying--
			dropped++
		}
		delete(q.timers, key)
	}
	q.notifyIdleLocked()
	q.cond.Broadcast()
	q.mu.Unlock()

	if dropped > 0 {
		slog.Warn("embedding queue shut down with pending jobs", "dropped", dropped)
	}

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for embedding workers: %w", ctx.Err())
	}
}

func (q *EmbeddingQueue) worker() {
	defer q.workers.Done()
	for {
		j, ok := q.next()
		if !ok {
			return
		}
		q.run(j)
	}
}

func (q *EmbeddingQueue) next() (*job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	j := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.states[j.key] = StateRunning
	q.running++
	return j, true
}

func (q *EmbeddingQueue) run(j *job) {
	j.attempt++
	err := q.attempt(j.key)

	delay := backoff.Stop
	if err != nil && isRetryable(err) {
		delay = j.backoff.NextBackOff()
	}

	q.mu.Lock()
	q.running--
	switch {
	case err == nil:
		q.stats.Succeeded++
		delete(q.states, j.key)
	case delay != backoff.Stop:
		q.states[j.key] = StatePending
		q.retrying++
		q.timers[j.key] = time.AfterFunc(delay, func() { q.requeue(j) })
	default:
		q.stats.Failed++
		delete(q.states, j.key)
	}
	q.notifyIdleLocked()
	q.mu.Unlock()

	log := slog.With("kind", j.key.Kind, "id", j.key.ID, "attempts", j.attempt)
	switch {
	case err == nil:
		log.Debug("embedding stored", "latency", q.now().Sub(j.enqueuedAt))
	case delay != backoff.Stop:
		log.Warn("embedding attempt failed, retrying", "delay", delay, "error", err)
	default:
		log.Error("embedding job failed", "error", err)
	}
}

// attempt reads the entity text at execution time, so edits made after
// Enqueue are part of the stored vector.
func (q *EmbeddingQueue) attempt(key model.EntityKey) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errJobPanicked, r)
		}
	}()

	ctx := context.Background()
	if q.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.AttemptTimeout)
		defer cancel()
	}

	text, err := q.store.GetText(ctx, key.Kind, key.ID)
	if err != nil {
		return fmt.Errorf("load text: %w", err)
	}
	vector, err := q.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}
	if err := q.store.SetVector(ctx, key.Kind, key.ID, vector, q.now()); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

func (q *EmbeddingQueue) requeue(j *job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.timers, j.key)
	q.retrying--
	if q.closed {
		delete(q.states, j.key)
		q.notifyIdleLocked()
		slog.Warn("embedding queue closed, dropping retry", "kind", j.key.Kind, "id", j.key.ID)
		return
	}
	q.pending = append(q.pending, j)
	q.cond.Signal()
}

func (q *EmbeddingQueue) notifyIdleLocked() {
	if len(q.states) > 0 {
		return
	}
	for _, ch := range q.waiters {
		close(ch)
	}
	q.waiters = nil
}

func (q *EmbeddingQueue) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.BaseDelay
	b.MaxInterval = q.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	// #nosec G115 -- MaxRetries is clamped to be non-negative in NewEmbeddingQueue
	return backoff.WithMaxRetries(b, uint64(q.cfg.MaxRetries))
}

func isRetryable(err error) bool {
	if errors.Is(err, repository.ErrEntityNotFound) ||
		errors.Is(err, model.ErrUnknownKind) ||
		errors.Is(err, errJobPanicked) {
		return false
	}
	return service.IsRetryable(err)
}
