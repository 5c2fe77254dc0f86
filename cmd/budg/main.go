package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/config"
	"github.com/eddostedson/eddo-budg-go/internal/domain"
	"github.com/eddostedson/eddo-budg-go/internal/handler"
	"github.com/eddostedson/eddo-budg-go/internal/infra/cache"
	"github.com/eddostedson/eddo-budg-go/internal/infra/events"
	"github.com/eddostedson/eddo-budg-go/internal/infra/observability"
	"github.com/eddostedson/eddo-budg-go/internal/infra/postgrest"
	"github.com/eddostedson/eddo-budg-go/internal/infra/resilience"
	"github.com/eddostedson/eddo-budg-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// softDeletable lists the collections whose removal strategy depends on the
// startup schema probe. Settlements are never removed, so they are not here.
var softDeletable = []domain.Collection{
	domain.CollectionIncomeSources,
	domain.CollectionExpenses,
	domain.CollectionBankAccounts,
	domain.CollectionTransactions,
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("write_timeout", cfg.WriteTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required: the ledger has no local store")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "eddo-budg")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Backing store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := postgrest.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Capability probe: resolve deletion strategy per collection, once ---
	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	strategies := service.ResolveDeletionStrategies(probeCtx, store, softDeletable, metrics, logger)
	probeCancel()

	// --- Event bus ---
	bus := events.NewBus()

	// --- Cache ---
	totalsCache := cache.New[decimal.Decimal](cfg.CacheTTL)
	defer totalsCache.Close()

	// --- Services ---
	balances := service.NewBalanceService(store, metrics, logger)
	rentSvc := service.NewRentService(store, balances, bus, metrics, logger)
	pipeline := service.NewMutationPipeline(store, balances, service.NewLocalView(), bus, bulkhead, metrics, logger, cfg.WriteTimeout)
	deleter := service.NewDeletionController(store, balances, bus, metrics, logger, strategies)
	agg := service.NewAggregationService(store, totalsCache, bus.Subscribe(), metrics, logger)
	defer agg.Close()
	ledgerSvc := service.NewLedgerService(store, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Ledger:    ledgerSvc,
		Pipeline:  pipeline,
		Rent:      rentSvc,
		Balances:  balances,
		Deleter:   deleter,
		Agg:       agg,
		Metrics:   metrics,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	// Let in-flight durable writes settle before dropping the process.
	pipeline.Drain()
	bus.Close()

	logger.Info("server stopped")
}
