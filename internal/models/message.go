package models

import (
	"fmt"
	"strings"
	"time"
)

// KitchenItem is one line as the kitchen sees it
type KitchenItem struct {
	Name     string `json:"name"`
	Variant  string `json:"variant,omitempty"`
	Quantity int    `json:"quantity"`
	WeightKg string `json:"weight_kg,omitempty"`
}

// OrderMessage represents a message sent to the kitchen once an order is accepted
type OrderMessage struct {
	OrderNumber     string        `json:"order_number"`
	RemoteNumber    string        `json:"remote_number,omitempty"`
	OrderType       OrderType     `json:"order_type"`
	TableNumber     *int          `json:"table_number,omitempty"`
	DeliveryAddress *string       `json:"delivery_address,omitempty"`
	ServerName      string        `json:"server_name,omitempty"`
	Items           []KitchenItem `json:"items"`
	CreatedAt       time.Time     `json:"created_at"`
}

// SyncEventType names a change in the life of an unconfirmed order
type SyncEventType string

const (
	EventOrderSynced     SyncEventType = "order_synced"
	EventOrderQueued     SyncEventType = "order_queued"
	EventOrderSyncFailed SyncEventType = "order_sync_failed"
	EventPassStarted     SyncEventType = "sync_pass_started"
	EventPassCompleted   SyncEventType = "sync_pass_completed"
	EventNetworkChanged  SyncEventType = "network_changed"
)

// SyncEvent represents a status update for operator displays
type SyncEvent struct {
	Type         SyncEventType `json:"event"`
	LocalID      string        `json:"local_id,omitempty"`
	OrderNumber  string        `json:"order_number,omitempty"`
	RemoteID     string        `json:"remote_id,omitempty"`
	RemoteNumber string        `json:"remote_number,omitempty"`
	State        QueueState    `json:"state,omitempty"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	Error        string        `json:"error,omitempty"`
	Pending      int           `json:"pending"`
	Online       *bool         `json:"online,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// CreateOrderMessage builds the kitchen ticket for an accepted order
func CreateOrderMessage(order *Order) *OrderMessage {
	items := make([]KitchenItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		item := KitchenItem{
			Name:     line.Name,
			Variant:  line.Variant,
			Quantity: line.Quantity,
		}
		if line.WeightKg != nil {
			item.WeightKg = line.WeightKg.StringFixed(2)
		}
		items = append(items, item)
	}

	return &OrderMessage{
		OrderNumber:     order.Number,
		RemoteNumber:    order.RemoteNumber,
		OrderType:       order.Fulfillment.Type,
		TableNumber:     order.Fulfillment.TableNumber,
		DeliveryAddress: order.Fulfillment.DeliveryAddress,
		ServerName:      order.ServerName,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}

// GenerateRoutingKey generates a routing key for kitchen messages
func GenerateRoutingKey(orderType OrderType) string {
	return fmt.Sprintf("kitchen.%s", strings.ToLower(string(orderType)))
}
