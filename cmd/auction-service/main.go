package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"slot-auction/internal/api/handlers"
	"slot-auction/internal/api/middleware"
	"slot-auction/internal/config"
	"slot-auction/internal/domain"
	"slot-auction/internal/infrastructure/memory"
	"slot-auction/internal/infrastructure/mysql"
	"slot-auction/internal/infrastructure/redis"
	"slot-auction/internal/services"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
	"slot-auction/pkg/utils"
)

// ledger bundles the store backend chosen by configuration.
type ledger struct {
	store     domain.LedgerStore
	outbox    domain.NotificationOutbox
	companies domain.EligibilityProvider
	db        *sql.DB
}

func openLedger(ctx context.Context, cfg *config.Config, log logger.Logger) *ledger {
	if cfg.Store.Driver == "memory" {
		companies := make([]domain.Company, 0, len(cfg.Store.Companies))
		for _, id := range cfg.Store.Companies {
			companies = append(companies, domain.Company{ID: id, Name: id, AuctionEligible: true})
		}
		store := memory.NewStore()
		log.Info("Using in-memory ledger store", "companies", len(companies))
		return &ledger{store: store, outbox: store, companies: memory.NewCompanyDirectory(companies...)}
	}

	db := utils.InitializeMysql(ctx, cfg, log)
	store := mysql.NewMySQLStore(db, log)
	return &ledger{store: store, outbox: store, companies: mysql.NewMySQLCompanyRepository(db), db: db}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	m := metrics.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := utils.InitializeRedis(ctx, cfg, log)
	defer rdb.Close()

	l := openLedger(ctx, cfg, log)
	if l.db != nil {
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(l.db)
	}

	clock := domain.SystemClock{}
	eligibility := services.NewCachedEligibilityProvider(rdb, l.companies, cfg.Eligibility.CacheTTL, log)
	dispatcher := services.NewNotificationDispatcher(clock)
	controller := services.NewSessionController(l.store, dispatcher, clock, services.SessionControllerConfig{
		AutoExtendWindow: cfg.Auction.AutoExtendWindow,
		MaxTxRetries:     cfg.Auction.MaxTxRetries,
	}, m, log)
	bidLedger := services.NewBidLedger(l.store, eligibility, controller, dispatcher, clock, cfg.Auction.MaxTxRetries, m, log)
	auctionService := services.NewAuctionService(l.store, bidLedger, controller, clock, log)

	// With the memory store the outbox only exists in this process, so the
	// relay runs here instead of in the notification service.
	var relay *services.OutboxRelay
	if cfg.Store.Driver == "memory" {
		relay = services.NewOutboxRelay(l.outbox, []services.NotificationSink{
			{Name: "redis", Publisher: redis.NewEventPublisher(rdb, cfg.Redis.Channel)},
		}, nil, clock, services.OutboxRelayConfig{
			Schedule:   cfg.Relay.Schedule,
			BatchSize:  cfg.Relay.BatchSize,
			InstanceID: cfg.Instance.ID,
		}, m, log)
		if err := relay.Start(context.Background()); err != nil {
			log.Error("Failed to start outbox relay", "error", err)
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.RequestID())
	e.Use(echomw.LoggerWithConfig(echomw.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			middleware.CompanyHeader,
		},
		MaxAge: 86400,
	}))

	api := e.Group("/api/v1", middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	handlers.NewAuctionHandler(auctionService, log).Register(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"store":     cfg.Store.Driver,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if relay != nil {
		if err := relay.Stop(); err != nil {
			log.Error("Failed to stop outbox relay", "error", err)
		}
		// Flush whatever committed before shutdown.
		if _, err := relay.RelayOnce(shutdownCtx); err != nil {
			log.Error("Final outbox relay run failed", "error", err)
		}
	}

	log.Info("Auction service stopped")
}
