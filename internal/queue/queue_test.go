package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/kvstore"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
)

var service = time.Date(2026, 3, 9, 19, 30, 0, 0, time.UTC)

// countingStore records physical writes
type countingStore struct {
	kvstore.Store
	puts atomic.Int32
	fail atomic.Bool
}

func (c *countingStore) Put(ctx context.Context, key string, value []byte) error {
	if c.fail.Load() {
		return errors.New("disk full")
	}
	c.puts.Add(1)
	return c.Store.Put(ctx, key, value)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func order(localID string, seq int) models.Order {
	return models.Order{
		LocalID:   localID,
		Number:    models.GenerateOrderNumber(service, seq),
		CreatedAt: service,
		Lines: []models.CartLine{{
			ID: "l1", ItemID: "lechon", Name: "Lechon", Mode: models.PricingFixed,
			Quantity: 1, UnitPrice: d("437.50"), LineTotal: d("437.50"),
		}},
		Subtotal:     d("437.50"),
		DiscountType: models.DiscountNone,
		Discount:     decimal.Zero,
		Total:        d("437.50"),
		Tendered:     d("500"),
		Change:       d("62.50"),
		Payment:      models.Payment{Method: models.PaymentCash, Tendered: d("500")},
		Fulfillment:  models.Fulfillment{Type: models.Takeout},
	}
}

func open(t *testing.T, kv kvstore.Store, debounce time.Duration) *Queue {
	t.Helper()
	q, err := Open(context.Background(), kv, logger.Discard(), Options{
		Debounce: debounce,
		Now:      func() time.Time { return service },
	})
	require.NoError(t, err)
	return q
}

func TestQueue_EnqueueIsIdempotent(t *testing.T) {
	q := open(t, kvstore.NewMemoryStore(), time.Hour)

	_, err := q.Enqueue(order("a1", 1))
	require.NoError(t, err)
	_, err = q.Enqueue(order("a1", 1))
	require.NoError(t, err)

	assert.Equal(t, 1, q.Len())
}

func TestQueue_SubmissionOrder(t *testing.T) {
	q := open(t, kvstore.NewMemoryStore(), time.Hour)

	for i, id := range []string{"c", "a", "b"} {
		_, err := q.Enqueue(order(id, i+1))
		require.NoError(t, err)
	}
	require.NoError(t, q.Remove("a"))

	pending := q.ListPending()
	require.Len(t, pending, 2)
	assert.Equal(t, "c", pending[0].Order.LocalID)
	assert.Equal(t, "b", pending[1].Order.LocalID)

	pending[0].State = models.StateSynced
	got, _ := q.Get("c")
	assert.Equal(t, models.StateQueued, got.State, "ListPending must return a copy")
}

func TestQueue_DebounceCoalescesWrites(t *testing.T) {
	kv := &countingStore{Store: kvstore.NewMemoryStore()}
	q := open(t, kv, 50*time.Millisecond)

	for i := 0; i < 20; i++ {
		_, err := q.Enqueue(order(fmt.Sprintf("o%d", i), i+1))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(0), kv.puts.Load(), "no write inside the window")

	assert.Eventually(t, func() bool { return kv.puts.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), kv.puts.Load())
}

func TestQueue_FlushNowBypassesWindow(t *testing.T) {
	kv := &countingStore{Store: kvstore.NewMemoryStore()}
	q := open(t, kv, time.Hour)

	_, err := q.Enqueue(order("a1", 1))
	require.NoError(t, err)
	require.NoError(t, q.FlushNow(context.Background()))
	assert.Equal(t, int32(1), kv.puts.Load())

	require.NoError(t, q.FlushNow(context.Background()))
	assert.Equal(t, int32(1), kv.puts.Load(), "clean queue is not rewritten")
}

func TestQueue_FlushFailureKeepsDirty(t *testing.T) {
	kv := &countingStore{Store: kvstore.NewMemoryStore()}
	q := open(t, kv, time.Hour)

	_, err := q.Enqueue(order("a1", 1))
	require.NoError(t, err)

	kv.fail.Store(true)
	assert.ErrorContains(t, q.FlushNow(context.Background()), "disk full")

	kv.fail.Store(false)
	require.NoError(t, q.FlushNow(context.Background()))
	assert.Equal(t, int32(1), kv.puts.Load())
}

func TestQueue_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()

	q := open(t, kv, time.Hour)
	_, err := q.Enqueue(order("a1", 1))
	require.NoError(t, err)
	_, err = q.Enqueue(order("a2", 2))
	require.NoError(t, err)
	require.NoError(t, q.MarkSyncing("a1"))
	require.NoError(t, q.Close(ctx))

	restarted := open(t, kv, time.Hour)
	pending := restarted.ListPending()
	require.Len(t, pending, 2)
	assert.Equal(t, models.StateQueued, pending[0].State, "in-flight entries resume as QUEUED")
	assert.Equal(t, "437.50", pending[0].Order.Total.StringFixed(2))
	assert.Equal(t, "ORD_20260309_002", pending[1].Order.Number)
}

func TestQueue_MarkFailedRecordsCause(t *testing.T) {
	q := open(t, kvstore.NewMemoryStore(), time.Hour)
	_, err := q.Enqueue(order("a1", 1))
	require.NoError(t, err)

	require.NoError(t, q.MarkSyncing("a1"))
	require.NoError(t, q.MarkFailed("a1", models.NewValidationError("rejected", errors.New("check constraint"))))

	got, ok := q.Get("a1")
	require.True(t, ok)
	assert.Equal(t, models.StateQueued, got.State)
	assert.Equal(t, 1, got.RetryCount)
	assert.True(t, got.NeedsReview())

	require.NoError(t, q.MarkFailed("a1", errors.New("unclassified")))
	got, _ = q.Get("a1")
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, models.KindNetwork, got.LastErrorKind)

	assert.ErrorIs(t, q.MarkFailed("missing", nil), ErrNotFound)
}

func TestQueue_Capacity(t *testing.T) {
	q, err := Open(context.Background(), kvstore.NewMemoryStore(), logger.Discard(), Options{MaxEntries: 2, Debounce: time.Hour})
	require.NoError(t, err)

	_, err = q.Enqueue(order("a1", 1))
	require.NoError(t, err)
	_, err = q.Enqueue(order("a2", 2))
	require.NoError(t, err)
	_, err = q.Enqueue(order("a3", 3))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueue_ClosedRejectsEnqueue(t *testing.T) {
	q := open(t, kvstore.NewMemoryStore(), time.Hour)
	require.NoError(t, q.Close(context.Background()))

	_, err := q.Enqueue(order("a1", 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	q := open(t, kv, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = q.Enqueue(order(fmt.Sprintf("o%d", i), i+1))
		}(i)
	}
	wg.Wait()
	require.NoError(t, q.Close(ctx))

	assert.Equal(t, 50, open(t, kv, time.Hour).Len())
}

func TestQueue_PersistedDocument(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	q := open(t, kv, time.Hour)

	_, err := q.Enqueue(order("a1", 1))
	require.NoError(t, err)
	require.NoError(t, q.MarkFailed("a1", models.NewNetworkError("remote store unreachable", errors.New("connection refused"))))
	require.NoError(t, q.FlushNow(ctx))

	raw, ok, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	pretty, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "queue_document", append(pretty, '\n'))
}

func TestWriteThrough_PersistsBeforeReturn(t *testing.T) {
	kv := &countingStore{Store: kvstore.NewMemoryStore()}
	q := open(t, kv, 0)

	_, err := q.Enqueue(order("a", 1))
	require.NoError(t, err)
	assert.Equal(t, int32(1), kv.puts.Load())

	entries, err := Read(context.Background(), kv, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StateQueued, entries[0].State)

	require.NoError(t, q.MarkFailed("a", models.NewNetworkError("write failed", nil)))
	entries, err = Read(context.Background(), kv, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)

	require.NoError(t, q.Remove("a"))
	entries, err = Read(context.Background(), kv, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, int32(3), kv.puts.Load())
}

func TestRead_DoesNotWrite(t *testing.T) {
	kv := &countingStore{Store: kvstore.NewMemoryStore()}
	q := open(t, kv, 0)
	_, err := q.Enqueue(order("a", 1))
	require.NoError(t, err)
	require.NoError(t, q.MarkSyncing("a"))
	writes := kv.puts.Load()

	entries, err := Read(context.Background(), kv, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StateSyncing, entries[0].State)
	assert.Equal(t, writes, kv.puts.Load())

	empty, err := Read(context.Background(), kvstore.NewMemoryStore(), DefaultKey)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
