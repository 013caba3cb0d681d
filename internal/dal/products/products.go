package products

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"

	"github.com/microshop/orders/internal/dal/rabbitmq"
	"github.com/microshop/orders/internal/service/models/product"
	"github.com/microshop/orders/pkg/rpcerror"
)

// Client is an RPC client for the products service. Requests are published
// to the products queue with a reply-to queue and a correlation id; replies
// are routed back to the caller waiting on that id.
type Client struct {
	rabbitClient *rabbitmq.Client
	requestQueue string
	replyQueue   amqp.Queue

	mu      sync.Mutex
	pending map[string]chan amqp.Delivery

	stop chan struct{}
	done chan struct{}
}

// MustNewClient creates a new products RPC client and starts the reply
// consumer.
func MustNewClient(rabbitClient *rabbitmq.Client) *Client {
	requestQueue := viper.GetString("rabbitmq.products_queue")
	if requestQueue == "" {
		panic("rabbitmq.products_queue is not set in config")
	}

	replyQueue, err := rabbitClient.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       "",
		Durable:    false,
		AutoDelete: true,
		Exclusive:  true,
		NoWait:     false,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to declare reply queue: %v", err))
	}

	c := &Client{
		rabbitClient: rabbitClient,
		requestQueue: requestQueue,
		replyQueue:   replyQueue,
		pending:      make(map[string]chan amqp.Delivery),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	deliveries, err := rabbitClient.Consume(rabbitmq.ConsumeConfig{
		Queue:     replyQueue.Name,
		AutoAck:   true,
		Exclusive: true,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to consume reply queue: %v", err))
	}

	go c.routeReplies(deliveries)

	slog.Info("Products RPC client ready",
		"request_queue", requestQueue,
		"reply_queue", replyQueue.Name,
	)

	return c
}

// routeReplies dispatches replies to the caller waiting on the matching
// correlation id. Replies with no waiter are dropped.
func (c *Client) routeReplies(deliveries <-chan amqp.Delivery) {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}

			c.mu.Lock()
			waiter, found := c.pending[msg.CorrelationId]
			if found {
				delete(c.pending, msg.CorrelationId)
			}
			c.mu.Unlock()

			if !found {
				slog.Warn("Dropping reply with unknown correlation id",
					"correlation_id", msg.CorrelationId,
				)

				continue
			}

			waiter <- msg
		}
	}
}

// ValidateProducts resolves product ids against the products service.
// The call blocks until the correlated reply arrives or ctx is cancelled;
// no client-side timeout or retry policy is applied.
func (c *Client) ValidateProducts(
	ctx context.Context,
	ids []int64,
) ([]product.Product, error) {
	ctx, span := otel.Tracer("products-client").Start(ctx, "Client.ValidateProducts")
	defer span.End()

	body, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product ids: %w", err)
	}

	correlationID := uuid.New().String()
	waiter := make(chan amqp.Delivery, 1)

	c.mu.Lock()
	c.pending[correlationID] = waiter
	c.mu.Unlock()

	err = c.rabbitClient.Publish("", c.requestQueue, amqp.Publishing{
		ContentType:   "application/json",
		Type:          "validate_products",
		CorrelationId: correlationID,
		ReplyTo:       c.replyQueue.Name,
		Body:          body,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()

		return nil, fmt.Errorf("failed to publish validate_products request: %w", err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()

		return nil, ctx.Err()
	case reply := <-waiter:
		return decodeReply(reply.Body)
	}
}

// decodeReply parses the products payload. A structured {status, message}
// body is treated as an error reply from the products service.
func decodeReply(body []byte) ([]product.Product, error) {
	var result []product.Product
	if err := json.Unmarshal(body, &result); err == nil {
		return result, nil
	}

	var rpcErr rpcerror.Error
	if err := json.Unmarshal(body, &rpcErr); err == nil && rpcErr.Message != "" {
		return nil, &rpcErr
	}

	return nil, fmt.Errorf("unexpected validate_products reply: %s", body)
}

// Close stops the reply consumer.
func (c *Client) Close() error {
	close(c.stop)
	<-c.done

	return nil
}
