package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/quickserve/pos-order/internal/cache"
	"github.com/quickserve/pos-order/internal/dal/postgres"
	"github.com/quickserve/pos-order/internal/dal/rabbitmq"
	redisclient "github.com/quickserve/pos-order/internal/dal/redis"
	outboxrepo "github.com/quickserve/pos-order/internal/dal/repositories/outbox/postgres"
	"github.com/quickserve/pos-order/internal/jaeger"
	"github.com/quickserve/pos-order/internal/ratelimit"
	"github.com/quickserve/pos-order/internal/service/services/ordersvc"
	httptransport "github.com/quickserve/pos-order/internal/transport/http"
	outboxworker "github.com/quickserve/pos-order/internal/worker/outbox"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	transport      *httptransport.HTTPTransport
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	outboxWorker   *outboxworker.Worker
	traceProvider  *sdktrace.TracerProvider
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(jaeger.MustNewJaeger()),
	)
	otel.SetTracerProvider(traceProvider)

	postgresClient := postgres.MustNewClient()
	redisClient := redisclient.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	cacheGateway := cache.NewGateway(redisClient)
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient))

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithCacheGateway(cacheGateway),
		ordersvc.WithCacheTTL(time.Duration(viper.GetInt("cache.order_ttl_seconds"))*time.Second),
	)

	transport := httptransport.NewHTTPTransport(orderSvc, limiter)
	transport.RegisterRoutes()

	outboxWorker := outboxworker.NewWorker(
		outboxrepo.NewOutboxRepository(postgresClient.Pool()),
		rabbitClient,
	)

	return &App{
		orderSvc:       orderSvc,
		transport:      transport,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		outboxWorker:   outboxWorker,
		traceProvider:  traceProvider,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.outboxWorker.Start(groupCtx)

		return nil
	})

	group.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.transport.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped gracefully")
		}

		if err := a.traceProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Trace provider shutdown error", "error", err)
		}

		if err := a.rabbitClient.Close(); err != nil {
			slog.Error("RabbitMQ connection close error", "error", err)
		}

		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("Application error", "error", err)
	}

	a.postgresClient.Close()
	slog.Info("Application shutdown complete")
}
