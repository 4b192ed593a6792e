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

	"github.com/gorilla/mux"

	"slot-auction/internal/api/handlers"
	"slot-auction/internal/api/middleware"
	"slot-auction/internal/config"
	"slot-auction/internal/domain"
	"slot-auction/internal/infrastructure/leader"
	"slot-auction/internal/infrastructure/mysql"
	"slot-auction/internal/infrastructure/rabbitmq"
	"slot-auction/internal/infrastructure/redis"
	"slot-auction/internal/infrastructure/websocket"
	"slot-auction/internal/services"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
	"slot-auction/pkg/utils"
)

// The notification service relays the MySQL outbox to redis (and RabbitMQ
// when configured) and serves the websocket push gateway. Any number of
// instances may run; the relay only works on the elected leader.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Store.Driver != "mysql" {
		logger.New().Error("Notification service needs the mysql store driver", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting notification service", "config", cfg.GetConfigString())

	m := metrics.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := utils.InitializeRedis(ctx, cfg, log)
	defer rdb.Close()

	db := utils.InitializeMysql(ctx, cfg, log)
	defer db.Close()

	store := mysql.NewMySQLStore(db, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, leader.DefaultKey, cfg.Leader.TTL, log)

	sinks := []services.NotificationSink{
		{Name: "redis", Publisher: redis.NewEventPublisher(rdb, cfg.Redis.Channel)},
	}
	var queue *rabbitmq.QueuePublisher
	if cfg.RabbitMQ.URL != "" {
		queue = rabbitmq.NewQueuePublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log)
		sinks = append(sinks, services.NotificationSink{Name: "rabbitmq", Publisher: queue})
	}

	relay := services.NewOutboxRelay(store, sinks, leaderElection, domain.SystemClock{}, services.OutboxRelayConfig{
		Schedule:   cfg.Relay.Schedule,
		BatchSize:  cfg.Relay.BatchSize,
		InstanceID: cfg.Instance.ID,
	}, m, log)

	// Push gateway
	connManager := websocket.NewConnectionManager(log)
	notifier := websocket.NewWebSocketNotifier(connManager)
	eventListener := services.NewEventListener(notifier, connManager, log)
	eventSubscriber := redis.NewRedisEventSubscriber(rdb, cfg.Redis.Channel, log)

	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(log))
	handlers.NewWebSocketHandlers(store, connManager, log).Register(router)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := relay.Start(runCtx); err != nil {
		log.Error("Failed to start outbox relay", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := eventListener.Start(runCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting notification gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := relay.Stop(); err != nil {
		log.Error("Failed to stop outbox relay", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	stop()

	if queue != nil {
		if err := queue.Close(); err != nil {
			log.Error("Failed to close RabbitMQ publisher", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Notification service stopped")
}
