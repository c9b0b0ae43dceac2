package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dp-canteen-service/internal/client"
	"dp-canteen-service/internal/config"
	"dp-canteen-service/internal/events"
	"dp-canteen-service/internal/logger"
	"dp-canteen-service/internal/middleware"
	"dp-canteen-service/internal/repository"
	"dp-canteen-service/internal/server"
	"dp-canteen-service/internal/service"
	"dp-canteen-service/internal/tokencipher"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment.Name, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := client.InitDBClient(cfg.Database, log)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	cipher, err := tokencipher.New(cfg.Pickup.TokenSecret)
	if err != nil {
		log.Fatal("pickup token cipher init failed", zap.Error(err))
	}

	var publisher events.Publisher
	if writer := client.NewKafkaWriter(cfg.Kafka); writer != nil {
		publisher = events.NewKafkaPublisher(writer, log)
		log.Info("publishing order events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.OrderTopic))
	} else {
		publisher = events.NewLogPublisher(log)
	}

	rdb, err := client.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	scanLimiter := middleware.NewScanLimiter(rdb, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, cfg.RateLimit.Window, log)

	clock := service.SystemClock()

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	tokenRepo := repository.NewPickupTokenRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	orderService := service.NewOrderService(db, orderRepo, catalogRepo, publisher, clock, log)
	paymentService := service.NewPaymentService(
		db, cipher, cfg.Pickup.TokenTTL,
		orderRepo,
		paymentRepo,
		tokenRepo,
		publisher, clock, log,
	)
	pickupService := service.NewPickupService(
		db, cipher, cfg.Pickup.TokenTTL,
		orderRepo,
		tokenRepo,
		publisher, clock, log,
	)
	catalogService := service.NewCatalogService(db, catalogRepo, orderRepo, log)

	if cfg.Database.SeedCatalog {
		if err := catalogService.Seed(ctx); err != nil {
			log.Fatal("catalog seed failed", zap.Error(err))
		}
		log.Info("development catalog seeded")
	}

	srv := server.NewServer(
		log,
		cfg.Auth.JWTSecret,
		scanLimiter,
		orderService,
		paymentService,
		pickupService,
		catalogService,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		log.Error("event publisher close error", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
