package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/dal/products"
	"github.com/microshop/orders/internal/dal/rabbitmq"
	outboxrepo "github.com/microshop/orders/internal/dal/repositories/outbox/postgres"
	"github.com/microshop/orders/internal/otel"
	"github.com/microshop/orders/internal/service/services/ordersvc"
	"github.com/microshop/orders/internal/transport/amqprpc"
	httptransport "github.com/microshop/orders/internal/transport/http"
	outboxworker "github.com/microshop/orders/internal/worker/outbox"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	rpcServer      *amqprpc.Server
	httpTransport  *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	productsClient *products.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()
	productsClient := products.MustNewClient(rabbitClient)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithProductValidator(productsClient),
	)

	rpcServer := amqprpc.NewServer(rabbitClient, orderSvc)

	httpTransport := httptransport.NewHTTPTransport(orderSvc)
	httpTransport.RegisterRoutes()

	outboxWorker := outboxworker.NewWorker(
		outboxrepo.NewPostgresOutboxRepository(postgresClient.Pool()),
		rabbitClient,
	)

	return &App{
		orderSvc:       orderSvc,
		rpcServer:      rpcServer,
		httpTransport:  httpTransport,
		outboxWorker:   outboxWorker,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		productsClient: productsClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorker := context.WithCancel(context.Background())

	go func() {
		slog.Info("Starting RPC server")
		if err := a.rpcServer.Run(workerCtx); err != nil {
			slog.Error("RPC server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go a.outboxWorker.Start(workerCtx)

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.rpcServer.Shutdown(); err != nil {
		slog.Error("RPC server shutdown error", "error", err)
	} else {
		slog.Info("RPC server stopped gracefully")
	}

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.outboxWorker.Stop()
	cancelWorker()

	if err := a.productsClient.Close(); err != nil {
		slog.Error("Products client close error", "error", err)
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
