// Package remote writes confirmed orders to the back-office store.
//
// Every failure is reported as a models.Error of kind NETWORK (transient,
// retry later) or VALIDATION (the store rejected the payload).
package remote

import (
	"context"

	"pos-terminal/internal/models"
)

// Receipt is what the remote store assigns on acceptance
type Receipt struct {
	AssignedID     string `json:"assigned_id"`
	AssignedNumber string `json:"assigned_number"`
}

// Store is the remote order store. CreateOrder must be idempotent on
// Order.LocalID: a retried write returns the original receipt.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) (Receipt, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
