package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zuoky/nanotrader/internal/backtest"
	"github.com/zuoky/nanotrader/internal/config"
	"github.com/zuoky/nanotrader/internal/db"
	"github.com/zuoky/nanotrader/internal/db/conf"
	"github.com/zuoky/nanotrader/internal/exchange"
	"github.com/zuoky/nanotrader/internal/livetrading"
	"github.com/zuoky/nanotrader/internal/notifier"
	"github.com/zuoky/nanotrader/internal/strategy"
)

func main() {
	cfg := config.MustLoad()
	log.Println("Starting Nano Trader in mode:", cfg.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if cfg.RunMigration {
		if err := runMigrations(ctx, cfg.DBConnStr); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	storage := newStorage(cfg)

	var n notifier.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		n = notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay)
	} else {
		n = notifier.Noop{}
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	switch cfg.Mode {
	case "live":
		ex := newExchange(cfg, n)
		sink := exchange.NewSink(cfg.Symbol, ex, storage)
		strat := strategy.New(cfg, sink)
		if strat == nil {
			log.Fatalf("Unknown strategy: %s. Check your configuration.", cfg.Strategy)
		}

		engine := livetrading.New(cfg, ex, strat, storage, n)
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("Live trading stopped: %v", err)
		}

	case "backtest":
		backtest.RunBacktest(ctx, cfg, storage)

	default:
		log.Fatalf("Unsupported mode: %s", cfg.Mode)
	}

	log.Println("Shutdown complete")
}

// newStorage connects to Postgres when a connection string is configured and
// falls back to in-memory storage otherwise. Backtests without a database
// have no ticks to replay, so the fallback is mainly for paper trading.
func newStorage(cfg config.Config) db.Storage {
	if cfg.DBConnStr == "" {
		log.Println("No database configured, using in-memory storage")
		return db.NewMemory()
	}

	dbConfig, err := conf.NewConfig(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		log.Fatalf("Failed to create DB config: %v", err)
	}

	storage, err := db.New(*dbConfig)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Connected to Postgres/TimescaleDB")
	return storage
}

func newExchange(cfg config.Config, n notifier.Notifier) exchange.Exchange {
	switch cfg.Exchange {
	case "wallex":
		return exchange.NewWallexExchange(cfg.WallexAPIKey, n)
	case "paper":
		return exchange.NewPaperExchange()
	default:
		log.Fatalf("Unsupported exchange: %s", cfg.Exchange)
		return nil
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// runMigrations creates the database if it doesn't exist and runs the schema.sql script
func runMigrations(ctx context.Context, connStr string) error {
	log.Println("Running database migrations...")

	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in connection string")
	}

	baseConnStr := fmt.Sprintf("postgres://%s:%s@%s/postgres%s",
		u.User.Username(),
		func() string {
			p, _ := u.User.Password()
			return p
		}(),
		u.Host,
		func() string {
			if u.RawQuery != "" {
				return "?" + u.RawQuery
			}
			return ""
		}())

	baseDB, err := sql.Open("postgres", baseConnStr)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		log.Printf("Creating database %s...", dbName)
		_, err = baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	targetDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer targetDB.Close()

	schemaSQL, err := os.ReadFile("scripts/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err = targetDB.ExecContext(migrateCtx, string(schemaSQL))
	if err != nil {
		return fmt.Errorf("failed to execute schema.sql: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}
