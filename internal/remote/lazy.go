package remote

import (
	"context"
	"sync"

	"pos-terminal/internal/models"
)

// DialFunc opens a connected Store
type DialFunc func(ctx context.Context) (Store, error)

// Lazy defers connecting until the first call, and retries the dial on every
// call until one succeeds. The drivers reconnect by themselves after that.
type Lazy struct {
	dial DialFunc

	mu    sync.Mutex
	store Store
}

func NewLazy(dial DialFunc) *Lazy {
	return &Lazy{dial: dial}
}

func (l *Lazy) get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, nil
	}
	store, err := l.dial(ctx)
	if err != nil {
		if models.KindOf(err) == "" {
			err = models.NewNetworkError("remote store unreachable", err)
		}
		return nil, err
	}
	l.store = store
	return store, nil
}

func (l *Lazy) CreateOrder(ctx context.Context, order *models.Order) (Receipt, error) {
	store, err := l.get(ctx)
	if err != nil {
		return Receipt{}, err
	}
	return store.CreateOrder(ctx, order)
}

func (l *Lazy) Ping(ctx context.Context) error {
	store, err := l.get(ctx)
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

// Close releases the connection if one was ever made
func (l *Lazy) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	err := l.store.Close(ctx)
	l.store = nil
	return err
}
