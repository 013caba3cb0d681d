package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/microshop/orders/internal/service/models/orderstatus"
)

// Message represents an order event waiting to be published to RabbitMQ.
type Message struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// OrderCreatedEvent is the payload published when an order is created.
type OrderCreatedEvent struct {
	OrderID     string             `json:"orderId"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	TotalItems  int                `json:"totalItems"`
	Status      orderstatus.Status `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// OrderStatusChangedEvent is the payload published when an order status
// transition is applied.
type OrderStatusChangedEvent struct {
	OrderID   string             `json:"orderId"`
	OldStatus orderstatus.Status `json:"oldStatus"`
	NewStatus orderstatus.Status `json:"newStatus"`
	ChangedAt time.Time          `json:"changedAt"`
}

// NewMessage wraps an event payload into an outbox Message for the given
// routing key.
func NewMessage(queueName, routingKey string, event any, maxRetries int) (Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal outbox event: %w", err)
	}

	now := time.Now()

	return Message{
		QueueName:   queueName,
		RoutingKey:  routingKey,
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	}, nil
}
