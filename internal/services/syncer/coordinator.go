// Package syncer drains the local durable queue into the remote store.
package syncer

import (
	"context"
	"sync"
	"time"

	"pos-terminal/internal/events"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/network"
	"pos-terminal/internal/queue"
)

// State is the coordinator's externally visible state
type State string

const (
	StateIdle    State = "IDLE"
	StateSyncing State = "SYNCING"
)

// PassResult summarizes one pass over the queue
type PassResult struct {
	Manual    bool      `json:"manual"`
	Attempted int       `json:"attempted"`
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Pending   int       `json:"pending"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.SyncEvent) {}

// Coordinator owns the single-flight sync pass. At most one pass runs at a
// time; a network drop never cancels a pass in flight.
type Coordinator struct {
	queue         *queue.Queue
	writer        *Writer
	events        events.Publisher
	logger        *logger.Logger
	retryInterval time.Duration

	// syncing is claimed and released under stateMu; idle is signalled on
	// release
	stateMu sync.Mutex
	idle    *sync.Cond
	syncing bool

	mu   sync.Mutex
	last *PassResult
}

// NewCoordinator wires the queue to the writer. pub may be nil. While online,
// a non-zero retryInterval re-runs automatic passes for entries whose fast
// path or previous attempt failed without a network transition.
func NewCoordinator(q *queue.Queue, w *Writer, pub events.Publisher, log *logger.Logger, retryInterval time.Duration) *Coordinator {
	if pub == nil {
		pub = noopPublisher{}
	}
	c := &Coordinator{
		queue:         q,
		writer:        w,
		events:        pub,
		logger:        log,
		retryInterval: retryInterval,
	}
	c.idle = sync.NewCond(&c.stateMu)
	return c
}

// State reports IDLE or SYNCING
func (c *Coordinator) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.syncing {
		return StateSyncing
	}
	return StateIdle
}

// claim marks a pass as running. It fails when one already is.
func (c *Coordinator) claim() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.syncing {
		return false
	}
	c.syncing = true
	return true
}

func (c *Coordinator) release() {
	c.stateMu.Lock()
	c.syncing = false
	c.idle.Broadcast()
	c.stateMu.Unlock()
}

// LastPass returns the most recent completed pass, if any
func (c *Coordinator) LastPass() (PassResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return PassResult{}, false
	}
	return *c.last, true
}

// Run reacts to network transitions until ctx is done, then waits for any
// pass in flight to finish.
func (c *Coordinator) Run(ctx context.Context, source network.Source) {
	defer c.Wait()

	if source.Online() {
		c.startPass(ctx)
	}

	var tick <-chan time.Time
	if c.retryInterval > 0 {
		ticker := time.NewTicker(c.retryInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-source.Events():
			if !ok {
				return
			}
			online := st.Online
			c.events.Publish(models.SyncEvent{
				Type:      models.EventNetworkChanged,
				Online:    &online,
				Pending:   c.queue.Len(),
				Timestamp: st.At,
			})
			c.logger.Info("network_changed", "Network state changed", "", map[string]interface{}{
				"online":  online,
				"pending": c.queue.Len(),
			})
			if online {
				c.startPass(ctx)
			}
		case <-tick:
			if source.Online() {
				c.startPass(ctx)
			}
		}
	}
}

// startPass runs an automatic pass on its own goroutine when the queue has
// work and no pass is running
func (c *Coordinator) startPass(ctx context.Context) bool {
	if c.queue.Len() == 0 {
		return false
	}
	if !c.claim() {
		return false
	}

	go func() {
		defer c.release()
		c.pass(ctx, false)
	}()
	return true
}

// SyncNow runs a manual pass and waits for it. It reports false without
// doing anything when a pass is already running. Manual passes also retry
// entries the remote store previously rejected.
func (c *Coordinator) SyncNow(ctx context.Context) (PassResult, bool) {
	if !c.claim() {
		c.logger.Debug("sync_already_running", "Sync requested while a pass is in flight", "", nil)
		return PassResult{}, false
	}
	defer c.release()
	return c.pass(ctx, true), true
}

// Wait blocks until no pass is running
func (c *Coordinator) Wait() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	for c.syncing {
		c.idle.Wait()
	}
}

func (c *Coordinator) pass(ctx context.Context, manual bool) PassResult {
	requestID := logger.GenerateRequestID()
	entries := c.queue.ListPending()
	result := PassResult{Manual: manual, StartedAt: time.Now().UTC()}

	c.events.Publish(models.SyncEvent{
		Type:      models.EventPassStarted,
		Pending:   len(entries),
		Timestamp: result.StartedAt,
	})
	c.logger.Info("sync_pass_started", "Sync pass started", requestID, map[string]interface{}{
		"pending": len(entries),
		"manual":  manual,
	})

	// Writes in flight finish even if the caller goes away; the loop
	// stops picking new entries once ctx is done.
	writeCtx := context.WithoutCancel(ctx)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !manual && entry.NeedsReview() {
			result.Skipped++
			continue
		}
		result.Attempted++
		c.syncEntry(writeCtx, requestID, entry, &result)
	}

	result.Pending = c.queue.Len()
	result.Duration = time.Since(result.StartedAt).String()

	c.mu.Lock()
	last := result
	c.last = &last
	c.mu.Unlock()

	c.events.Publish(models.SyncEvent{
		Type:      models.EventPassCompleted,
		Pending:   result.Pending,
		Timestamp: time.Now().UTC(),
	})
	c.logger.Info("sync_pass_completed", "Sync pass completed", requestID, map[string]interface{}{
		"attempted": result.Attempted,
		"synced":    result.Synced,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"pending":   result.Pending,
		"manual":    manual,
	})
	return result
}

func (c *Coordinator) syncEntry(ctx context.Context, requestID string, entry models.QueueEntry, result *PassResult) {
	localID := entry.Order.LocalID
	if err := c.queue.MarkSyncing(localID); err != nil {
		// Removed since the snapshot was taken
		return
	}

	order := entry.Order
	if err := c.writer.Write(ctx, &order); err != nil {
		result.Failed++
		if markErr := c.queue.MarkFailed(localID, err); markErr != nil {
			c.logger.Error("queue_update_failed", "Failed to record sync failure", requestID, markErr, nil)
		}
		c.logger.Error("order_sync_failed", "Failed to sync order", requestID, err, map[string]interface{}{
			"local_id":     localID,
			"order_number": order.Number,
			"error_kind":   string(models.KindOf(err)),
			"retry_count":  entry.RetryCount + 1,
		})
		c.events.Publish(models.SyncEvent{
			Type:        models.EventOrderSyncFailed,
			LocalID:     localID,
			OrderNumber: order.Number,
			State:       models.StateQueued,
			ErrorKind:   models.KindOf(err),
			Error:       err.Error(),
			Pending:     c.queue.Len(),
			Timestamp:   time.Now().UTC(),
		})
		return
	}

	if err := c.queue.Remove(localID); err != nil {
		c.logger.Error("queue_update_failed", "Failed to remove synced order", requestID, err, nil)
	}
	result.Synced++

	c.logger.Info("order_synced", "Order synced", requestID, map[string]interface{}{
		"local_id":      localID,
		"order_number":  order.Number,
		"remote_id":     order.RemoteID,
		"remote_number": order.RemoteNumber,
	})
	c.events.Publish(models.SyncEvent{
		Type:         models.EventOrderSynced,
		LocalID:      localID,
		OrderNumber:  order.Number,
		RemoteID:     order.RemoteID,
		RemoteNumber: order.RemoteNumber,
		State:        models.StateSynced,
		Pending:      c.queue.Len(),
		Timestamp:    time.Now().UTC(),
	})
}
