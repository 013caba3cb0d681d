package amqprpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/microshop/orders/internal/dal/rabbitmq"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/pkg/rpcerror"
)

// Message types served by the RPC server.
const (
	msgCreateOrder       = "create_order"
	msgFindAllOrders     = "find_all_orders"
	msgFindOneOrder      = "find_one_order"
	msgChangeOrderStatus = "change_order_status"
)

// service is an interface for the service layer.
type service interface {
	Create(ctx context.Context, items []orderitem.OrderItem) (*order.Order, error)
	List(ctx context.Context, pagination order.PaginationModel) (*order.Page, error)
	GetByID(ctx context.Context, id string) (*order.Order, error)
	ChangeStatus(ctx context.Context, id string, status orderstatus.Status) (*order.Order, error)
}

// handlerFunc handles one decoded RPC message and returns the reply payload.
type handlerFunc func(ctx context.Context, body []byte) (any, error)

// Server consumes RPC messages from the orders queue, dispatches them to the
// service by message type, and publishes the reply to the caller's reply-to
// queue with the original correlation id.
type Server struct {
	client   *rabbitmq.Client
	service  service
	queue    amqp.Queue
	handlers map[string]handlerFunc
	stop     chan struct{}
	done     chan struct{}
}

// NewServer creates a new RPC server.
func NewServer(client *rabbitmq.Client, service service) *Server {
	queueName := viper.GetString("rabbitmq.orders_queue")
	if queueName == "" {
		panic("rabbitmq.orders_queue is not set in config")
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queueName,
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	s := &Server{
		client:  client,
		service: service,
		queue:   queue,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.handlers = map[string]handlerFunc{
		msgCreateOrder:       s.handleCreateOrder,
		msgFindAllOrders:     s.handleFindAllOrders,
		msgFindOneOrder:      s.handleFindOneOrder,
		msgChangeOrderStatus: s.handleChangeOrderStatus,
	}

	return s
}

// Run starts consuming RPC messages. It blocks until Shutdown is called or
// the delivery channel closes.
func (s *Server) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.consumer_tag")
	if consumerTag == "" {
		consumerTag = "orders-ms"
	}

	msgs, err := s.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    s.queue.Name,
		Consumer: consumerTag,
	})
	if err != nil {
		return err
	}

	slog.Info("RPC server started", "queue", s.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(50)

	go func() {
		for {
			select {
			case <-s.stop:
				slog.Info("Stopping RPC server")
				close(s.done)

				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Message channel closed")
					close(s.done)

					return
				}

				g.Go(func() error {
					s.processMessage(gctx, msg)

					return nil
				})
			}
		}
	}()

	<-s.done
	if err := g.Wait(); err != nil {
		slog.Error("Error processing messages", "error", err)
	}

	return nil
}

// processMessage dispatches one delivery and replies to the caller.
func (s *Server) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, span := otel.Tracer("amqprpc").Start(ctx, "Server."+msg.Type)
	defer span.End()

	slog.Info("Received RPC message",
		"type", msg.Type,
		"correlation_id", msg.CorrelationId,
	)

	handler, ok := s.handlers[msg.Type]

	var payload any
	var err error
	if !ok {
		err = rpcerror.New(http.StatusBadRequest, "unknown message type: "+msg.Type)
	} else {
		payload, err = handler(ctx, msg.Body)
	}

	if err != nil {
		slog.Error("RPC handler failed", "type", msg.Type, "error", err)
		payload = rpcerror.Body(err)
	}

	s.reply(msg, payload)

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)
	}
}

// reply publishes the payload to the caller's reply-to queue. Messages
// without a reply-to are treated as fire-and-forget.
func (s *Server) reply(msg amqp.Delivery, payload any) {
	if msg.ReplyTo == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal RPC reply", "error", err)

		return
	}

	err = s.client.Publish("", msg.ReplyTo, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: msg.CorrelationId,
		Body:          body,
	})
	if err != nil {
		slog.Error("Failed to publish RPC reply", "error", err)
	}
}

// Shutdown stops the consume loop and waits for in-flight handlers.
func (s *Server) Shutdown() error {
	close(s.stop)

	select {
	case <-s.done:
		slog.Info("RPC server stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("RPC server shutdown timeout")
	}

	return nil
}

func (s *Server) handleCreateOrder(ctx context.Context, body []byte) (any, error) {
	req := createOrderRequest{}
	if err := decodeRequest(body, &req); err != nil {
		return nil, err
	}

	return s.service.Create(ctx, req.ToModel())
}

func (s *Server) handleFindAllOrders(ctx context.Context, body []byte) (any, error) {
	req := orderPaginationRequest{}
	if err := decodeRequest(body, &req); err != nil {
		return nil, err
	}

	pagination, err := req.ToModel()
	if err != nil {
		return nil, rpcerror.New(http.StatusBadRequest, err.Error())
	}

	return s.service.List(ctx, pagination)
}

func (s *Server) handleFindOneOrder(ctx context.Context, body []byte) (any, error) {
	req := findOneOrderRequest{}
	if err := decodeRequest(body, &req); err != nil {
		return nil, err
	}

	return s.service.GetByID(ctx, req.ID)
}

func (s *Server) handleChangeOrderStatus(ctx context.Context, body []byte) (any, error) {
	req := changeOrderStatusRequest{}
	if err := decodeRequest(body, &req); err != nil {
		return nil, err
	}

	status, err := orderstatus.ParseStatus(req.Status)
	if err != nil {
		return nil, rpcerror.New(http.StatusBadRequest, err.Error())
	}

	return s.service.ChangeStatus(ctx, req.ID, status)
}
