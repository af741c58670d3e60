package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pos-terminal/internal/kvstore"
	"pos-terminal/internal/models"
)

const counterKey = "order_counter"

// CounterState is the persisted position of the order number counter
type CounterState struct {
	Day string `json:"day"`
	Seq int    `json:"seq"`
}

// CounterStore persists the counter so a restart on the same day does not
// reuse order numbers.
type CounterStore interface {
	Load(ctx context.Context) (CounterState, bool, error)
	Save(ctx context.Context, state CounterState) error
}

// Counter hands out the visible order numbers. It is monotonic within a
// calendar day and starts again at 1 when the day changes.
type Counter struct {
	mu    sync.Mutex
	state CounterState
	now   func() time.Time
	store CounterStore
}

// NewCounter creates a counter starting at 0 for today
func NewCounter(now func() time.Time) *Counter {
	if now == nil {
		now = time.Now
	}
	return &Counter{now: now}
}

// NewCounterFromStore resumes from the persisted position, if any
func NewCounterFromStore(ctx context.Context, store CounterStore, now func() time.Time) (*Counter, error) {
	c := NewCounter(now)
	c.store = store

	state, ok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load order counter: %w", err)
	}
	if ok {
		c.state = state
	}
	return c, nil
}

// Next advances the counter and returns the formatted order number
func (c *Counter) Next(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	today := now.Format("20060102")
	if today != c.state.Day {
		c.state = CounterState{Day: today}
	}
	c.state.Seq++

	if c.store != nil {
		if err := c.store.Save(ctx, c.state); err != nil {
			return "", fmt.Errorf("failed to persist order counter: %w", err)
		}
	}

	return models.GenerateOrderNumber(now, c.state.Seq), nil
}

// Current returns the last issued position without advancing
func (c *Counter) Current() CounterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// KVCounterStore keeps the counter as a JSON document in a kvstore.Store
type KVCounterStore struct {
	kv kvstore.Store
}

func NewKVCounterStore(kv kvstore.Store) *KVCounterStore {
	return &KVCounterStore{kv: kv}
}

func (s *KVCounterStore) Load(ctx context.Context) (CounterState, bool, error) {
	raw, ok, err := s.kv.Get(ctx, counterKey)
	if err != nil || !ok {
		return CounterState{}, false, err
	}
	var state CounterState
	if err := json.Unmarshal(raw, &state); err != nil {
		return CounterState{}, false, fmt.Errorf("failed to decode order counter: %w", err)
	}
	return state, true, nil
}

func (s *KVCounterStore) Save(ctx context.Context, state CounterState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, counterKey, raw)
}
