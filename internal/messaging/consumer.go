package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
)

// EventHandler receives one decoded sync event
type EventHandler func(ctx context.Context, event models.SyncEvent) error

// Consumer tails the sync fanout on a private queue
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	consumerTag string
}

// NewConsumer creates a new sync event consumer
func NewConsumer(conn *Connection, log *logger.Logger, consumerTag string) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		consumerTag: consumerTag,
	}
}

// StartConsuming blocks delivering events to handler until ctx is done
func (c *Consumer) StartConsuming(ctx context.Context, handler EventHandler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	queueName, err := c.conn.DeclareTail()
	if err != nil {
		return err
	}

	msgs, err := c.conn.Channel().Consume(
		queueName,     // queue
		c.consumerTag, // consumer
		true,          // auto-ack; the tail queue is private and transient
		true,          // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Tailing sync events on %s", queueName),
		"", map[string]interface{}{
			"queue":    queueName,
			"consumer": c.consumerTag,
		})

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return nil
		case d, ok := <-msgs:
			if !ok {
				c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
				if err := c.conn.Reconnect(ctx); err != nil {
					return fmt.Errorf("failed to reconnect after channel closed: %w", err)
				}
				return c.StartConsuming(ctx, handler)
			}

			if err := c.processMessage(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler EventHandler) error {
	var event models.SyncEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Warn("message_decode_failed", "Skipping malformed sync event", "", map[string]interface{}{
			"message_size": len(delivery.Body),
			"error":        err.Error(),
		})
		return nil
	}
	return handler(ctx, event)
}

// Close cancels the consumer
func (c *Consumer) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
		return c.conn.Close()
	}
	return nil
}

// TicketHandler receives one decoded kitchen ticket. Returning an error
// puts the ticket back on the queue.
type TicketHandler func(ctx context.Context, ticket models.OrderMessage) error

// ConsumeTickets blocks delivering tickets from a kitchen queue until ctx is
// done. Tickets are acked only after handler succeeds.
func (c *Consumer) ConsumeTickets(ctx context.Context, queueName string, prefetch int, handler TicketHandler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	if err := c.conn.Channel().Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.conn.Channel().Consume(
		queueName,     // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started", fmt.Sprintf("Consuming tickets from %s", queueName), "", map[string]interface{}{
		"queue":    queueName,
		"consumer": c.consumerTag,
		"prefetch": prefetch,
	})

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return nil
		case d, ok := <-msgs:
			if !ok {
				c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
				if err := c.conn.Reconnect(ctx); err != nil {
					return fmt.Errorf("failed to reconnect after channel closed: %w", err)
				}
				return c.ConsumeTickets(ctx, queueName, prefetch, handler)
			}
			c.processTicket(ctx, d, handler)
		}
	}
}

func (c *Consumer) processTicket(ctx context.Context, delivery amqp091.Delivery, handler TicketHandler) {
	var ticket models.OrderMessage
	if err := json.Unmarshal(delivery.Body, &ticket); err != nil {
		c.logger.Warn("message_decode_failed", "Dropping malformed kitchen ticket", "", map[string]interface{}{
			"routing_key":  delivery.RoutingKey,
			"message_size": len(delivery.Body),
			"error":        err.Error(),
		})
		if err := delivery.Nack(false, false); err != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", err, nil)
		}
		return
	}

	if err := handler(ctx, ticket); err != nil {
		c.logger.Error("ticket_handling_failed", "Requeueing kitchen ticket", "", err, map[string]interface{}{
			"order_number": ticket.OrderNumber,
		})
		if err := delivery.Nack(false, true); err != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", err, nil)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("message_ack_failed", "Failed to ack message", "", err, map[string]interface{}{
			"order_number": ticket.OrderNumber,
		})
	}
}
