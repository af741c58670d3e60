package syncer

import (
	"context"
	"time"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/remote"
)

// Announcer tells the kitchen about an accepted order
type Announcer interface {
	AnnounceOrder(ctx context.Context, order *models.Order) error
}

// Writer is the single path by which an order reaches the remote store. The
// checkout fast path and the coordinator's passes both go through it.
type Writer struct {
	remote    remote.Store
	announcer Announcer
	logger    *logger.Logger
	timeout   time.Duration
}

// NewWriter bounds each remote write by timeout; zero disables the bound.
// announcer may be nil.
func NewWriter(store remote.Store, announcer Announcer, log *logger.Logger, timeout time.Duration) *Writer {
	return &Writer{
		remote:    store,
		announcer: announcer,
		logger:    log,
		timeout:   timeout,
	}
}

// Write creates the order remotely and records the assigned identifiers on it.
// Errors are always a NETWORK or VALIDATION models.Error.
func (w *Writer) Write(ctx context.Context, order *models.Order) error {
	writeCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	receipt, err := w.remote.CreateOrder(writeCtx, order)
	if err != nil {
		if models.KindOf(err) == "" {
			err = models.NewNetworkError("remote write failed", err)
		}
		return err
	}

	order.RemoteID = receipt.AssignedID
	order.RemoteNumber = receipt.AssignedNumber

	if w.announcer != nil {
		if err := w.announcer.AnnounceOrder(ctx, order); err != nil {
			w.logger.Warn("kitchen_announce_failed", "Order accepted but kitchen ticket not sent", "", map[string]interface{}{
				"order_number":  order.Number,
				"remote_number": order.RemoteNumber,
				"error":         err.Error(),
			})
		}
	}
	return nil
}
