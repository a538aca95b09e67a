package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/betting-ledger/internal/audit"
	"github.com/josh-kwaku/betting-ledger/internal/cache"
	"github.com/josh-kwaku/betting-ledger/internal/config"
	"github.com/josh-kwaku/betting-ledger/internal/handler"
	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
	"github.com/josh-kwaku/betting-ledger/internal/repository"
	"github.com/josh-kwaku/betting-ledger/internal/service/betslip"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
	"github.com/josh-kwaku/betting-ledger/internal/service/settlement"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init("betting-ledger", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		PingAttempts:     cfg.DBPingAttempts,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	var sink audit.Sink = audit.LogSink{}
	if len(cfg.KafkaBrokers) > 0 {
		w := audit.NewWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic, m)
		defer closeWriter(w)
		sink = audit.NewKafkaSink(w, m)
		slog.Info("audit records published to kafka", "topic", cfg.KafkaAuditTopic)
	} else {
		slog.Info("no kafka brokers configured, audit records go to the log")
	}

	wallets := repository.NewWalletRepository(db)
	entries := repository.NewLedgerRepository(db)
	balances := repository.NewAccountBalanceRepository(db)
	events := repository.NewEventRepository(db)
	bets := repository.NewBetRepository(db)

	ledgerEngine := ledger.NewEngine(db, wallets, entries, balances, sink, m, ledger.Config{
		WithdrawalApprovalThreshold: cfg.WithdrawalApprovalThreshold,
	})
	slips := betslip.NewService(db, events, wallets, bets, limits.NewRedisStore(rdb, cfg.DefaultLimits()), ledgerEngine, m)
	settlementEngine := settlement.NewEngine(db, bets, events, ledgerEngine, sink, m)

	redisHealth := cache.Pinger{Client: rdb}
	router := newRouter(routeDeps{
		jwtSecret:   cfg.JWTSecret,
		idempotency: cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL()),
		metrics:     m,
		health:      handler.NewHealthHandler(db, redisHealth),
		ledger:      handler.NewLedgerHandler(ledgerEngine),
		reports:     handler.NewReportHandler(ledgerEngine),
		bets:        handler.NewBetHandler(slips, settlementEngine),
		settlement:  handler.NewSettlementHandler(settlementEngine),
	})

	metricsSrv := metrics.NewServer(strconv.Itoa(cfg.MetricsPort), reg, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return redisHealth.Ping(ctx)
	})
	metrics.Start(metricsSrv)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", addr, "metrics_port", cfg.MetricsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

// closeWriter flushes pending audit messages before exit.
func closeWriter(w *kafka.Writer) {
	if err := w.Close(); err != nil {
		slog.Error("audit writer close", "error", err)
	}
}
