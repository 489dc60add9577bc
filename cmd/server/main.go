package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/commodex/paper-engine/internal/api"
	"github.com/commodex/paper-engine/internal/auth"
	"github.com/commodex/paper-engine/internal/config"
	"github.com/commodex/paper-engine/internal/insight"
	"github.com/commodex/paper-engine/internal/ledger"
	"github.com/commodex/paper-engine/internal/logging"
	"github.com/commodex/paper-engine/internal/market"
	"github.com/commodex/paper-engine/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFile)

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Account store ---
	var st ledger.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := ledger.NewPostgresStore(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	} else {
		st = ledger.NewFileStore(cfg.DataFile, cfg.LegacySymbol)
		slog.Info("using file account store", "path", cfg.DataFile)
	}
	accounts := ledger.New(st)

	// --- Sessions ---
	var sessions auth.SessionStore
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Warn("redis unreachable, using in-memory sessions", "err", err)
			rdb.Close()
			sessions = auth.NewMemorySessionStore(cfg.SessionTTL)
		} else {
			cleanup = append(cleanup, func() { rdb.Close() })
			sessions = auth.NewRedisSessionStore(rdb, cfg.SessionTTL)
			slog.Info("redis sessions enabled")
		}
	} else {
		slog.Warn("REDIS_URL not set, sessions will not survive restarts")
		sessions = auth.NewMemorySessionStore(cfg.SessionTTL)
	}

	// --- Price simulator ---
	symbols, err := config.LoadSymbols(cfg.SymbolsFile)
	if err != nil {
		slog.Error("symbol catalog failed", "err", err)
		os.Exit(1)
	}
	sim := market.NewSimulator(symbols, cfg.TickInterval, cfg.HistorySize, 0)

	hub := api.NewHub()
	go hub.Run()
	sim.OnTick(hub.BroadcastQuote)

	simCtx, stopSim := context.WithCancel(context.Background())
	defer stopSim()
	go sim.Run(simCtx)

	// --- Insights ---
	insights := insight.NewGenerator(sim, 0)
	insights.RefreshAll()
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.InsightSchedule, insights.RefreshAll); err != nil {
		slog.Error("invalid INSIGHT_REFRESH schedule", "err", err)
		os.Exit(1)
	}
	scheduler.Start()

	// --- Services ---
	engine := trade.NewEngine(accounts)
	authSvc := auth.NewService(accounts, sessions, cfg.StartingBalance)
	server := api.NewServer(engine, authSvc, sim, insights, hub, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("paper-engine listening", "port", cfg.Port, "symbols", len(symbols))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down paper-engine...")
	stopSim()
	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("paper-engine stopped")
}
