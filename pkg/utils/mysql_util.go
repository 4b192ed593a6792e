package utils

import (
	"context"
	"database/sql"
	"os"

	"slot-auction/internal/config"
	"slot-auction/pkg/logger"

	_ "github.com/go-sql-driver/mysql"
)

func InitializeMysql(ctx context.Context, cfg *config.Config, log logger.Logger) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")
	return db
}
