package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/storefront/internal/auth"
	"github.com/jogardn/storefront/internal/catalog"
	"github.com/jogardn/storefront/internal/circuitbreaker"
	"github.com/jogardn/storefront/internal/config"
	"github.com/jogardn/storefront/internal/customers"
	"github.com/jogardn/storefront/internal/events"
	"github.com/jogardn/storefront/internal/httpapi"
	"github.com/jogardn/storefront/internal/orders"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/internal/validation"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if err := cfg.RequireAuth(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	pg := store.NewPostgres(db)
	if err := pg.Migrate(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	breakers := circuitbreaker.NewManager(logger)

	var publisher orders.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, breakers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events are disabled")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Store:     pg,
		Orders:    orders.NewService(pg, publisher, logger, orders.Options{AtomicCreate: cfg.AtomicOrderCreate}),
		Customers: customers.NewService(pg, logger),
		Catalog:   catalog.NewService(pg, logger),
		Issuer:    auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Breakers:  breakers,
		Validate:  validation.New(),
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":                cfg.Port,
			"atomic_order_create": cfg.AtomicOrderCreate,
		}).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}
