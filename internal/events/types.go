package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderCreatedTopic   = "order.created"
	OrderItemAddedTopic = "order.item_added"
	DLQTopic            = "order.events.dlq"
)

type OrderCreatedEvent struct {
	EventID    string          `json:"event_id"`
	OrderID    int             `json:"order_id"`
	CustomerID int             `json:"customer_id"`
	ItemsCount int             `json:"items_count"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
	EventTime  time.Time       `json:"event_time"`
}

type OrderItemAddedEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   int       `json:"order_id"`
	ItemID    int       `json:"item_id"`
	ProductID int       `json:"product_id"`
	Amount    int       `json:"amount"`
	EventTime time.Time `json:"event_time"`
}
