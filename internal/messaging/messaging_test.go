package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
)

// matches reports whether an AMQP topic pattern matches a routing key with
// single-word wildcards only
func matches(pattern, key string) bool {
	pw, kw := splitWords(pattern), splitWords(key)
	if len(pw) != len(kw) {
		return false
	}
	for i := range pw {
		if pw[i] != "*" && pw[i] != kw[i] {
			return false
		}
	}
	return true
}

func splitWords(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestKitchenBindings_RouteEveryOrderType(t *testing.T) {
	for _, ot := range []models.OrderType{models.DineIn, models.Takeout, models.Delivery} {
		key := models.GenerateRoutingKey(ot)

		var queues []string
		for _, b := range kitchenBindings {
			if matches(b.routingKey, key) {
				queues = append(queues, b.queue)
			}
		}
		assert.Len(t, queues, 2, "routing key %s", key)
		assert.Contains(t, queues, "kitchen_queue")
	}
}

func TestBuildPublishing(t *testing.T) {
	event := models.SyncEvent{Type: models.EventOrderSynced, LocalID: "a1", Pending: 3}

	p, err := buildPublishing(event, false)
	require.NoError(t, err)
	assert.Equal(t, "application/json", p.ContentType)
	assert.Equal(t, amqp091.Transient, p.DeliveryMode)

	var decoded models.SyncEvent
	require.NoError(t, json.Unmarshal(p.Body, &decoded))
	assert.Equal(t, event.LocalID, decoded.LocalID)

	p, err = buildPublishing(models.OrderMessage{OrderNumber: "ORD_20260309_001"}, true)
	require.NoError(t, err)
	assert.Equal(t, amqp091.Persistent, p.DeliveryMode)
}

func TestConsumer_SkipsMalformedMessages(t *testing.T) {
	c := NewConsumer(nil, logger.Discard(), "test")

	called := false
	handler := func(context.Context, models.SyncEvent) error {
		called = true
		return nil
	}

	require.NoError(t, c.processMessage(context.Background(), amqp091.Delivery{Body: []byte("{not json")}, handler))
	assert.False(t, called)

	require.NoError(t, c.processMessage(context.Background(), amqp091.Delivery{Body: []byte(`{"event":"order_queued","pending":1}`)}, handler))
	assert.True(t, called)
}

// recordingAcker captures how a delivery was settled
type recordingAcker struct {
	acked   int
	nacked  int
	requeue bool
}

func (r *recordingAcker) Ack(uint64, bool) error {
	r.acked++
	return nil
}

func (r *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacked++
	r.requeue = requeue
	return nil
}

func (r *recordingAcker) Reject(uint64, bool) error { return nil }

func TestProcessTicket_Settlement(t *testing.T) {
	c := NewConsumer(nil, logger.Discard(), "test")
	ticket := []byte(`{"order_number":"ORD_20260309_001","order_type":"TAKEOUT","items":[{"name":"Lechon","quantity":1}]}`)

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		wantAck     int
		wantNack    int
		wantRequeue bool
	}{
		{name: "handled", body: ticket, wantAck: 1},
		{name: "handler failed", body: ticket, handlerErr: errors.New("printer jammed"), wantNack: 1, wantRequeue: true},
		{name: "malformed", body: []byte("{"), wantNack: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acker := &recordingAcker{}
			var got models.OrderMessage
			c.processTicket(context.Background(), amqp091.Delivery{Acknowledger: acker, Body: tt.body}, func(_ context.Context, m models.OrderMessage) error {
				got = m
				return tt.handlerErr
			})

			assert.Equal(t, tt.wantAck, acker.acked)
			assert.Equal(t, tt.wantNack, acker.nacked)
			assert.Equal(t, tt.wantRequeue, acker.requeue)
			if tt.wantAck > 0 {
				assert.Equal(t, "ORD_20260309_001", got.OrderNumber)
			}
		})
	}
}

func TestKitchenQueue(t *testing.T) {
	tests := map[string]string{
		"":         "kitchen_queue",
		"all":      "kitchen_queue",
		"dine_in":  "kitchen_dine_in_queue",
		"TAKEOUT":  "kitchen_takeout_queue",
		"delivery": "kitchen_delivery_queue",
	}
	for station, want := range tests {
		got, err := KitchenQueue(station)
		require.NoError(t, err, station)
		assert.Equal(t, want, got)
	}

	_, err := KitchenQueue("bar")
	assert.Error(t, err)
}
