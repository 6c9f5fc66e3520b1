package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/config"
	"github.com/jogardn/storefront/internal/events"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/jogardn/storefront/internal/websocket"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	consumer, err := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.NotifierGroupID,
		broadcastHandler(hub), events.DefaultRetryPolicy(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Kafka consumer stopped")
			cancel()
		}
	}()

	srv := &http.Server{
		Addr:        ":" + cfg.NotifierPort,
		Handler:     newRouter(hub, consumer.Metrics, logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.NotifierPort).Info("Starting order notifier")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("Shutting down notifier...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Notifier stopped")
}

func newRouter(hub *websocket.Hub, consumerMetrics func() events.ConsumerMetrics, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(httpx.LoggingMiddleware(logger))
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "order-notifier",
			"clients":  hub.ClientCount(),
			"consumer": consumerMetrics(),
		})
	}).Methods("GET")
	return router
}

// broadcastHandler forwards every event to websocket clients. Payloads that
// are not JSON cannot succeed on retry and go straight to the DLQ.
func broadcastHandler(hub *websocket.Hub) events.Handler {
	return events.HandlerFunc(func(ctx context.Context, topic string, payload []byte) error {
		var data json.RawMessage
		if err := json.Unmarshal(payload, &data); err != nil {
			return events.Permanent(err)
		}
		hub.Broadcast(topic, data, "kafka")
		return nil
	})
}
