// Package notification renders sync events for people watching a terminal
// from another screen.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/messaging"
	"pos-terminal/internal/models"
)

// Source delivers decoded sync events until ctx is done
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.EventHandler) error
}

// Subscriber prints every sync event it receives
type Subscriber struct {
	source Source
	out    io.Writer
	json   bool
	logger *logger.Logger
}

// NewSubscriber writes human-readable lines to out, or one JSON object per
// line when asJSON is set
func NewSubscriber(source Source, out io.Writer, asJSON bool, log *logger.Logger) *Subscriber {
	return &Subscriber{source: source, out: out, json: asJSON, logger: log}
}

// Start blocks until ctx is done or the source fails
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Sync event subscriber started", requestID, nil)

	if err := s.source.StartConsuming(ctx, s.handle); err != nil {
		s.logger.Error("consumer_failed", "Sync event consumer failed", requestID, err, nil)
		return err
	}

	s.logger.Info("graceful_shutdown", "Sync event subscriber stopped", requestID, nil)
	return nil
}

func (s *Subscriber) handle(_ context.Context, event models.SyncEvent) error {
	if s.json {
		return json.NewEncoder(s.out).Encode(event)
	}
	_, err := fmt.Fprintln(s.out, Format(event))
	return err
}

// Format renders one event as a single console line
func Format(ev models.SyncEvent) string {
	timestamp := ev.Timestamp.Local().Format("2006-01-02 15:04:05")

	switch ev.Type {
	case models.EventOrderSynced:
		return fmt.Sprintf("[%s] Order %s synced as %s (%d pending)",
			timestamp, ev.OrderNumber, ev.RemoteNumber, ev.Pending)
	case models.EventOrderQueued:
		if ev.ErrorKind != "" {
			return fmt.Sprintf("[%s] Order %s saved offline after %s error (%d pending)",
				timestamp, ev.OrderNumber, ev.ErrorKind, ev.Pending)
		}
		return fmt.Sprintf("[%s] Order %s saved offline, will sync (%d pending)",
			timestamp, ev.OrderNumber, ev.Pending)
	case models.EventOrderSyncFailed:
		if ev.ErrorKind == models.KindValidation {
			return fmt.Sprintf("[%s] Order %s rejected by back office, needs review: %s",
				timestamp, ev.OrderNumber, ev.Error)
		}
		return fmt.Sprintf("[%s] Order %s failed to sync, will retry: %s",
			timestamp, ev.OrderNumber, ev.Error)
	case models.EventPassStarted:
		return fmt.Sprintf("[%s] Sync started, %d pending", timestamp, ev.Pending)
	case models.EventPassCompleted:
		return fmt.Sprintf("[%s] Sync finished, %d pending", timestamp, ev.Pending)
	case models.EventNetworkChanged:
		state := "offline"
		if ev.Online != nil && *ev.Online {
			state = "online"
		}
		return fmt.Sprintf("[%s] Terminal is %s", timestamp, state)
	default:
		return fmt.Sprintf("[%s] %s %s", timestamp, ev.Type, ev.OrderNumber)
	}
}
