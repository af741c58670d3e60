// Package kitchen prints tickets for orders the back office has accepted.
package kitchen

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/messaging"
	"pos-terminal/internal/models"
)

// TicketSource delivers kitchen tickets from one queue until ctx is done
type TicketSource interface {
	ConsumeTickets(ctx context.Context, queueName string, prefetch int, handler messaging.TicketHandler) error
}

// Worker is one kitchen station's ticket printer
type Worker struct {
	station  string
	queue    string
	prefetch int
	source   TicketSource
	logger   *logger.Logger

	mu      sync.Mutex
	out     io.Writer
	printed int
}

// NewWorker creates a worker for station ("" or "all" for the expo screen)
func NewWorker(station string, prefetch int, source TicketSource, out io.Writer, log *logger.Logger) (*Worker, error) {
	queueName, err := messaging.KitchenQueue(station)
	if err != nil {
		return nil, err
	}
	if prefetch < 1 {
		prefetch = 1
	}
	return &Worker{
		station:  station,
		queue:    queueName,
		prefetch: prefetch,
		source:   source,
		out:      out,
		logger:   log,
	}, nil
}

// Start blocks printing tickets until ctx is done or the source fails
func (w *Worker) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	w.logger.Info("worker_started", fmt.Sprintf("Kitchen station %s started", w.queue), requestID, map[string]interface{}{
		"station":  w.station,
		"queue":    w.queue,
		"prefetch": w.prefetch,
	})

	if err := w.source.ConsumeTickets(ctx, w.queue, w.prefetch, w.handleTicket); err != nil {
		return fmt.Errorf("kitchen station %s: %w", w.queue, err)
	}

	w.logger.Info("graceful_shutdown", "Kitchen station stopped", requestID, map[string]interface{}{
		"printed": w.Printed(),
	})
	return nil
}

// Printed reports how many tickets this worker has printed
func (w *Worker) Printed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.printed
}

func (w *Worker) handleTicket(_ context.Context, ticket models.OrderMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.out, FormatTicket(ticket)); err != nil {
		return fmt.Errorf("failed to print ticket %s: %w", ticket.OrderNumber, err)
	}
	w.printed++

	w.logger.Debug("ticket_printed", fmt.Sprintf("Printed ticket %s", ticket.OrderNumber), "", map[string]interface{}{
		"order_number":  ticket.OrderNumber,
		"remote_number": ticket.RemoteNumber,
		"order_type":    ticket.OrderType,
		"items":         len(ticket.Items),
	})
	return nil
}

// FormatTicket renders a ticket for a narrow kitchen printer
func FormatTicket(t models.OrderMessage) string {
	var b strings.Builder
	rule := strings.Repeat("-", 32)

	number := t.OrderNumber
	if t.RemoteNumber != "" {
		number = t.RemoteNumber
	}
	fmt.Fprintf(&b, "%s\n%s  %s\n", rule, number, t.CreatedAt.Local().Format("15:04"))

	switch t.OrderType {
	case models.DineIn:
		if t.TableNumber != nil {
			fmt.Fprintf(&b, "DINE IN  table %d\n", *t.TableNumber)
		} else {
			b.WriteString("DINE IN\n")
		}
	case models.Delivery:
		b.WriteString("DELIVERY\n")
		if t.DeliveryAddress != nil {
			fmt.Fprintf(&b, "  %s\n", *t.DeliveryAddress)
		}
	default:
		b.WriteString("TAKEOUT\n")
	}
	if t.ServerName != "" {
		fmt.Fprintf(&b, "Server: %s\n", t.ServerName)
	}
	b.WriteString(rule + "\n")

	for _, item := range t.Items {
		name := item.Name
		if item.Variant != "" {
			name = fmt.Sprintf("%s (%s)", name, item.Variant)
		}
		if item.WeightKg != "" {
			fmt.Fprintf(&b, "%6s kg  %s\n", item.WeightKg, name)
			continue
		}
		fmt.Fprintf(&b, "%6dx    %s\n", item.Quantity, name)
	}
	b.WriteString(rule + "\n")
	return b.String()
}
