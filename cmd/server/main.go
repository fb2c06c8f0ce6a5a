package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offer-wallet-service/config"
	"offer-wallet-service/internal/api"
	"offer-wallet-service/internal/broker"
	"offer-wallet-service/internal/redisclient"
	"offer-wallet-service/internal/service"
	"offer-wallet-service/internal/store"
	"offer-wallet-service/internal/store/memstore"
	"offer-wallet-service/internal/util"
	"offer-wallet-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting offer wallet service",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Driver))

	decimal.MarshalJSONWithoutQuotes = true

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	var (
		offerRepo  service.OfferRepository
		walletRepo service.WalletRepository
		eventLog   service.EventLog
	)
	dependencies := map[string]api.Pinger{}

	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		mem := memstore.New()
		offerRepo, walletRepo, eventLog = mem, mem, mem
		logger.Warn("Using in-memory store; data is lost on restart")
	case config.StoreDriverPostgres:
		if err := store.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		offerRepo, walletRepo, eventLog = db, db, db
		dependencies["postgres"] = db
		logger.Info("Database connected")
	default:
		logger.Fatal("Unknown store driver", zap.String("driver", cfg.Database.Driver))
	}

	var (
		offerCache  service.OfferCache
		idempotency api.IdempotencyStore
		eventLocker worker.Locker
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Business.ActiveOffersCacheTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		offerCache, idempotency, eventLocker = redisClient, redisClient, redisClient
		dependencies["redis"] = redisClient
		logger.Info("Redis connected")
	}

	var publisher service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		walletProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicWalletEvents)
		defer walletProducer.Close()
		offerProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOfferEvents)
		defer offerProducer.Close()
		publisher = broker.NewEventPublisher(walletProducer, offerProducer)
		logger.Info("Kafka producers initialized")
	}

	offerService := service.NewOfferService(offerRepo, offerCache, publisher, cfg.Business.ConflictRetryAttempts)
	walletService := service.NewWalletService(walletRepo, publisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var ledgerWorker *worker.LedgerWorker
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicWalletEvents, cfg.Kafka.ConsumerGroup)
		if cfg.Kafka.TopicDeadLetter != "" {
			deadLetterProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDeadLetter)
			defer deadLetterProducer.Close()
			consumer.WithDeadLetter(deadLetterProducer, cfg.Kafka.ConsumerMaxAttempts)
		}
		ledgerWorker = worker.NewLedgerWorker(consumer, walletService, eventLog, eventLocker)
		go func() {
			if err := ledgerWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Ledger worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(offerService, walletService, idempotency, cfg.Business.IdempotencyKeyTTL, dependencies)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if ledgerWorker != nil {
		if err := ledgerWorker.Stop(); err != nil {
			logger.Error("Error stopping ledger worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
