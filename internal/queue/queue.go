// Package queue is the terminal's local durable queue of orders the remote
// store has not yet confirmed.
//
// The whole queue is persisted as one JSON document in a kvstore.Store.
// Mutations are debounced: a burst of changes inside the window produces a
// single physical write. FlushNow bypasses the window and must run before
// process exit.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pos-terminal/internal/kvstore"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
)

const (
	// DefaultKey is the kvstore key of the queue document
	DefaultKey = "pending_orders"

	documentVersion = 1
)

var (
	// ErrQueueFull is returned by Enqueue when MaxEntries is reached
	ErrQueueFull = errors.New("local order queue is full")
	// ErrNotFound is returned when a local order id is not queued
	ErrNotFound = errors.New("order not in local queue")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("local order queue is closed")
)

// Options tune the queue. Empty Key, MaxEntries and Now select the defaults;
// a non-positive Debounce writes through on every mutation, before the
// mutating call returns.
type Options struct {
	Key        string
	Debounce   time.Duration
	MaxEntries int
	Now        func() time.Time
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{
		Key:        DefaultKey,
		Debounce:   150 * time.Millisecond,
		MaxEntries: 5000,
		Now:        time.Now,
	}
}

type document struct {
	Version int                 `json:"version"`
	Entries []models.QueueEntry `json:"entries"`
}

// Queue holds entries in submission order. Safe for concurrent use.
type Queue struct {
	kv     kvstore.Store
	logger *logger.Logger
	opts   Options

	// writeMu serializes snapshot+write so documents land in mutation order
	writeMu sync.Mutex

	mu      sync.Mutex
	entries []models.QueueEntry
	dirty   bool
	timer   *time.Timer
	closed  bool
	// set under mu in write-through mode; unlock persists and clears it
	writeThrough bool
}

// Open loads the persisted queue. Entries left SYNCING by a crash are reset
// to QUEUED.
func Open(ctx context.Context, kv kvstore.Store, log *logger.Logger, opts Options) (*Queue, error) {
	defaults := DefaultOptions()
	if opts.Key == "" {
		opts.Key = defaults.Key
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaults.MaxEntries
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	q := &Queue{kv: kv, logger: log, opts: opts}

	entries, err := Read(ctx, kv, opts.Key)
	if err != nil {
		return nil, err
	}

	recovered := 0
	for i := range entries {
		if entries[i].State == models.StateSyncing {
			entries[i].State = models.StateQueued
			recovered++
		}
	}
	q.entries = entries

	if recovered > 0 {
		log.Warn("queue_recovered", "Reset entries interrupted mid-sync", "startup", map[string]interface{}{
			"recovered": recovered,
		})
		q.mu.Lock()
		q.markDirtyLocked()
		q.unlock()
	}

	return q, nil
}

// Read decodes the persisted entries without opening a queue. Nothing is
// written back, so it is safe next to a running terminal.
func Read(ctx context.Context, kv kvstore.Store, key string) ([]models.QueueEntry, error) {
	if key == "" {
		key = DefaultKey
	}
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load local queue: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode local queue: %w", err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported local queue version %d", doc.Version)
	}
	return doc.Entries, nil
}

// Enqueue appends an order. Enqueueing an order that is already queued is a
// no-op returning the existing entry.
func (q *Queue) Enqueue(order models.Order) (models.QueueEntry, error) {
	q.mu.Lock()
	defer q.unlock()

	if q.closed {
		return models.QueueEntry{}, ErrClosed
	}
	if i := q.indexLocked(order.LocalID); i >= 0 {
		return q.entries[i], nil
	}
	if len(q.entries) >= q.opts.MaxEntries {
		return models.QueueEntry{}, ErrQueueFull
	}

	now := q.opts.Now().UTC()
	entry := models.QueueEntry{
		Order:       order,
		SubmittedAt: now,
		UpdatedAt:   now,
		State:       models.StateQueued,
	}
	q.entries = append(q.entries, entry)
	q.markDirtyLocked()
	return entry, nil
}

// ListPending returns a copy of all entries in submission order
func (q *Queue) ListPending() []models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Get returns one entry by local order id
func (q *Queue) Get(localID string) (models.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexLocked(localID); i >= 0 {
		return q.entries[i], true
	}
	return models.QueueEntry{}, false
}

// Len returns the number of pending entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Remove drops a confirmed order from the queue
func (q *Queue) Remove(localID string) error {
	q.mu.Lock()
	defer q.unlock()

	i := q.indexLocked(localID)
	if i < 0 {
		return ErrNotFound
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	q.markDirtyLocked()
	return nil
}

// MarkSyncing records that a write for this entry is in flight
func (q *Queue) MarkSyncing(localID string) error {
	return q.update(localID, func(e *models.QueueEntry) {
		e.State = models.StateSyncing
	})
}

// MarkFailed puts the entry back to QUEUED with the failure recorded
func (q *Queue) MarkFailed(localID string, cause error) error {
	return q.update(localID, func(e *models.QueueEntry) {
		e.State = models.StateQueued
		e.RetryCount++
		e.LastErrorKind = models.KindOf(cause)
		if e.LastErrorKind == "" {
			e.LastErrorKind = models.KindNetwork
		}
		if cause != nil {
			e.LastError = cause.Error()
		}
	})
}

func (q *Queue) update(localID string, fn func(e *models.QueueEntry)) error {
	q.mu.Lock()
	defer q.unlock()

	i := q.indexLocked(localID)
	if i < 0 {
		return ErrNotFound
	}
	fn(&q.entries[i])
	q.entries[i].UpdatedAt = q.opts.Now().UTC()
	q.markDirtyLocked()
	return nil
}

// FlushNow writes pending mutations immediately, bypassing the debounce window
func (q *Queue) FlushNow(ctx context.Context) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if !q.dirty {
		q.mu.Unlock()
		return nil
	}
	doc := document{Version: documentVersion, Entries: q.entries}
	if doc.Entries == nil {
		doc.Entries = []models.QueueEntry{}
	}
	raw, err := json.Marshal(doc)
	q.dirty = false
	q.mu.Unlock()

	if err == nil {
		err = q.kv.Put(ctx, q.opts.Key, raw)
	}
	if err != nil {
		q.mu.Lock()
		q.dirty = true
		q.mu.Unlock()
		return fmt.Errorf("failed to persist local queue: %w", err)
	}
	return nil
}

// Close flushes and rejects further enqueues
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.FlushNow(ctx)
}

// markDirtyLocked schedules a debounced write. The first mutation opens the
// window; later ones ride along.
func (q *Queue) markDirtyLocked() {
	q.dirty = true
	if q.opts.Debounce == 0 {
		q.writeThrough = true
		return
	}
	if q.timer == nil {
		q.timer = time.AfterFunc(q.opts.Debounce, q.persist)
	}
}

// unlock releases mu, then performs a pending write-through
func (q *Queue) unlock() {
	write := q.writeThrough
	q.writeThrough = false
	q.mu.Unlock()
	if write {
		q.persist()
	}
}

// persist flushes and, on failure, keeps retrying on a timer
func (q *Queue) persist() {
	if err := q.FlushNow(context.Background()); err != nil {
		q.logger.Error("queue_flush_failed", "Failed to persist local queue", "", err, nil)
		q.mu.Lock()
		if q.timer == nil && !q.closed {
			retry := q.opts.Debounce
			if retry == 0 {
				retry = time.Second
			}
			q.timer = time.AfterFunc(retry, q.persist)
		}
		q.mu.Unlock()
	}
}

func (q *Queue) indexLocked(localID string) int {
	for i := range q.entries {
		if q.entries[i].Order.LocalID == localID {
			return i
		}
	}
	return -1
}
