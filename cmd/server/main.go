package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flipbook-fulfillment-service/internal/cache"
	"flipbook-fulfillment-service/internal/config"
	"flipbook-fulfillment-service/internal/controller"
	"flipbook-fulfillment-service/internal/metrics"
	"flipbook-fulfillment-service/internal/middleware"
	"flipbook-fulfillment-service/internal/model"
	"flipbook-fulfillment-service/internal/rabbit"
	"flipbook-fulfillment-service/internal/repository"
	"flipbook-fulfillment-service/internal/service"
	"flipbook-fulfillment-service/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB: orders + GridFS videos
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fatal(logger, "mongo connect", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	if err := client.Ping(connectCtx, nil); err != nil {
		fatal(logger, "mongo ping", err)
	}
	db := client.Database(cfg.MongoDBName)

	repo := repository.NewMongoOrderRepository(db)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		fatal(logger, "mongo indexes", err)
	}
	videos := storage.NewGridFSVideoStorage(db)

	// Redis tracking cache
	rdb := cache.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		logger.Warn("redis unavailable, tracking views will hit mongo", "addr", cfg.RedisAddr, "error", err)
	}

	// RabbitMQ: order events out, payment confirmations in
	broker, err := rabbit.Dial(cfg.RabbitURL)
	if err != nil {
		fatal(logger, "rabbitmq dial", err)
	}
	defer broker.Close()
	publisher, err := rabbit.NewPublisher(broker, cfg.ServiceName)
	if err != nil {
		fatal(logger, "rabbitmq publisher", err)
	}

	orderService := service.NewOrderService(repo, videos, service.Options{
		BasePrice:        cfg.BasePrice,
		GiftPackagePrice: cfg.GiftPackagePrice,
		MaxVideoBytes:    cfg.MaxVideoBytes,
		Policy:           model.NewTransitionPolicy(cfg.StatusPolicy),
		Publisher:        publisher,
		Cache:            cache.NewTrackingCache(rdb, cfg.TrackingCacheTTL),
		Logger:           logger,
	})
	authService := service.NewAuthService(cfg.AuthURL)

	if err := rabbit.SetupConsumers(ctx, broker, orderService, logger); err != nil {
		fatal(logger, "rabbitmq consumers", err)
	}

	// Router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", controller.Health(map[string]func() error{
		"rabbitmq": publisher.Err,
	}))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	ctrl := controller.NewOrderController(orderService, logger)
	controller.RegisterRoutes(r, ctrl,
		middleware.AuthMiddleware(authService, logger),
		middleware.AdminOnly(),
	)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("flipbook fulfillment service listening", "port", cfg.Port, "status_policy", cfg.StatusPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "http server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

func fatal(logger *slog.Logger, what string, err error) {
	logger.Error(what+" failed", "error", err)
	os.Exit(1)
}
