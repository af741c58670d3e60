// Package order is the counter session: the cart being built, the discount
// applied to it, and the checkout that turns it into a durable order.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pos-terminal/internal/catalog"
	"pos-terminal/internal/events"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/network"
	"pos-terminal/internal/queue"
	"pos-terminal/internal/services/checkout"
	"pos-terminal/internal/services/pricing"
	"pos-terminal/internal/services/syncer"
)

// Status tells the operator where a confirmed order ended up
type Status string

const (
	StatusSynced Status = "synced"
	StatusQueued Status = "queued"
)

// CheckoutRequest is the payment step input
type CheckoutRequest struct {
	Payment     models.Payment
	Fulfillment models.Fulfillment
	ServerID    string
	RequestID   string
}

// CheckoutResult is returned for every order that was durably recorded
type CheckoutResult struct {
	Order   *models.Order `json:"order"`
	Status  Status        `json:"status"`
	Message string        `json:"message"`
}

// Preview is the cart as the operator sees it before paying
type Preview struct {
	Lines          []models.CartLine    `json:"lines"`
	Discount       *models.DiscountSpec `json:"discount_spec,omitempty"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	DiscountAmount decimal.Decimal      `json:"discount"`
	Total          decimal.Decimal      `json:"total"`
	Display        map[string]string    `json:"display"`
}

// Deps are the collaborators of a Service. Staff and Events are optional.
type Deps struct {
	Catalog   catalog.Provider
	Staff     catalog.Directory
	Assembler *checkout.Assembler
	Writer    *syncer.Writer
	Queue     *queue.Queue
	Network   network.Source
	Events    events.Publisher
	Currency  models.Currency
	Logger    *logger.Logger
}

// Service serializes all cart edits and checkouts of one terminal
type Service struct {
	deps Deps

	mu       sync.Mutex
	cart     *pricing.Cart
	discount *models.DiscountSpec
}

func NewService(deps Deps) *Service {
	return &Service{
		deps: deps,
		cart: pricing.NewCart(pricing.NewEngine()),
	}
}

// AddItem prices a catalog selection into the cart
func (s *Service) AddItem(itemID string, in pricing.Input) (models.CartLine, error) {
	item, err := s.deps.Catalog.GetItem(itemID)
	if err != nil {
		return models.CartLine{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Add(item, in)
}

func (s *Service) SetQuantity(lineID string, quantity int) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.SetQuantity(lineID, quantity)
}

func (s *Service) Increment(lineID string) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Increment(lineID)
}

func (s *Service) Decrement(lineID string) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Decrement(lineID)
}

func (s *Service) RemoveLine(lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Remove(lineID)
}

// ClearCart abandons the order in progress, discount included
func (s *Service) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
	s.discount = nil
}

// SetDiscount validates and applies a card-holder discount
func (s *Service) SetDiscount(kind models.DiscountType, totalPax, eligible int) (models.DiscountSpec, error) {
	spec, err := models.NewDiscountSpec(kind, totalPax, eligible)
	if err != nil {
		return models.DiscountSpec{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.discount = &spec
	return spec, nil
}

func (s *Service) ClearDiscount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discount = nil
}

// Preview returns the cart with live totals
func (s *Service) Preview() Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewLocked()
}

func (s *Service) previewLocked() Preview {
	lines := s.cart.Lines()
	totals := checkout.ComputeTotals(lines, s.discount)

	var spec *models.DiscountSpec
	if s.discount != nil {
		copied := *s.discount
		spec = &copied
	}

	return Preview{
		Lines:          lines,
		Discount:       spec,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.Discount,
		Total:          totals.Total,
		Display: map[string]string{
			"subtotal": s.deps.Currency.Format(totals.Subtotal),
			"discount": s.deps.Currency.Format(totals.Discount),
			"total":    s.deps.Currency.Format(totals.Total),
		},
	}
}

// Checkout assembles the cart into an order and records it: directly in the
// remote store when online, otherwise (or when that write fails) in the local
// queue. The cart is cleared only once the order is durably recorded.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serverName, err := s.serverName(req.ServerID)
	if err != nil {
		return nil, err
	}

	order, err := s.deps.Assembler.Assemble(ctx, checkout.Request{
		Lines:       s.cart.Lines(),
		Discount:    s.discount,
		Payment:     req.Payment,
		Fulfillment: req.Fulfillment,
		ServerName:  serverName,
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{Order: order}

	var writeErr error
	if s.deps.Network.Online() {
		if writeErr = s.deps.Writer.Write(ctx, order); writeErr == nil {
			result.Status = StatusSynced
			result.Message = "Order saved"
			s.publish(models.SyncEvent{
				Type:         models.EventOrderSynced,
				LocalID:      order.LocalID,
				OrderNumber:  order.Number,
				RemoteID:     order.RemoteID,
				RemoteNumber: order.RemoteNumber,
				State:        models.StateSynced,
				Pending:      s.deps.Queue.Len(),
			})
			s.deps.Logger.Info("order_synced", "Order written directly", req.RequestID, map[string]interface{}{
				"order_number":  order.Number,
				"remote_number": order.RemoteNumber,
				"total":         order.Total.StringFixed(models.MoneyPlaces),
			})
		} else {
			s.deps.Logger.Warn("fast_path_failed", "Direct write failed, queueing order", req.RequestID, map[string]interface{}{
				"order_number": order.Number,
				"error_kind":   string(models.KindOf(writeErr)),
				"error":        writeErr.Error(),
			})
		}
	}

	if result.Status != StatusSynced {
		if err := s.enqueue(order, writeErr, req.RequestID); err != nil {
			return nil, err
		}
		result.Status = StatusQueued
		result.Message = "Saved offline, will sync"
		if models.IsKind(writeErr, models.KindValidation) {
			result.Message = "Saved locally; the back office rejected it and it needs review"
		}
	}

	s.cart.Clear()
	s.discount = nil
	return result, nil
}

func (s *Service) enqueue(order *models.Order, writeErr error, requestID string) error {
	if _, err := s.deps.Queue.Enqueue(*order); err != nil {
		s.deps.Logger.Error("order_queue_failed", "Failed to queue order", requestID, err, map[string]interface{}{
			"order_number": order.Number,
		})
		return fmt.Errorf("queue order %s: %w", order.Number, err)
	}
	if writeErr != nil {
		if err := s.deps.Queue.MarkFailed(order.LocalID, writeErr); err != nil && !errors.Is(err, queue.ErrNotFound) {
			return err
		}
	}

	entry, _ := s.deps.Queue.Get(order.LocalID)
	s.publish(models.SyncEvent{
		Type:        models.EventOrderQueued,
		LocalID:     order.LocalID,
		OrderNumber: order.Number,
		State:       models.StateQueued,
		ErrorKind:   entry.LastErrorKind,
		Error:       entry.LastError,
		Pending:     s.deps.Queue.Len(),
	})
	s.deps.Logger.Info("order_queued", "Order saved to local queue", requestID, map[string]interface{}{
		"order_number": order.Number,
		"pending":      s.deps.Queue.Len(),
	})
	return nil
}

func (s *Service) serverName(staffID string) (string, error) {
	if staffID == "" || s.deps.Staff == nil {
		return "", nil
	}
	staff, err := s.deps.Staff.GetStaff(staffID)
	if err != nil {
		if errors.Is(err, catalog.ErrStaffNotFound) {
			return "", models.NewInvalidInput("server_id", "unknown staff member")
		}
		return "", err
	}
	return staff.Name, nil
}

func (s *Service) publish(ev models.SyncEvent) {
	if s.deps.Events == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	s.deps.Events.Publish(ev)
}
