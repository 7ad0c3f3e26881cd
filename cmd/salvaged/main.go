package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vietddude/salvage/internal/control"
	"github.com/vietddude/salvage/internal/core/config"
	"github.com/vietddude/salvage/internal/core/worker"
	"github.com/vietddude/salvage/internal/infra/notify"
	"github.com/vietddude/salvage/internal/infra/postgres"
	"github.com/vietddude/salvage/internal/infra/queue"
	redisclient "github.com/vietddude/salvage/internal/infra/redis"
	"github.com/vietddude/salvage/internal/infra/storage/memory"
	"github.com/vietddude/salvage/internal/salvage/health"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))
	slog.Info("Logger initialized", "level", slogLevel.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Assemble the store backends. Postgres carries the durable operator
	// queues when configured, redis the failure records, and memory fills
	// in anything left unconfigured.
	deps := control.Deps{Log: slog.Default()}
	memStore := memory.NewStorage()
	deps.Records = memory.NewRecordRepo(memStore)
	deps.Reviews = memory.NewReviewRepo(memStore)
	deps.Escalations = memory.NewEscalationRepo(memStore)
	deps.Archive = memory.NewArchiveRepo(memStore)

	var redisCli *redisclient.Client
	if cfg.Redis.URL != "" {
		redisCli, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCli.Close()
		deps.Records = redisclient.NewRecordRepo(redisCli)
		deps.Reviews = redisclient.NewReviewRepo(redisCli)
		deps.Escalations = redisclient.NewEscalationRepo(redisCli)
		deps.Archive = redisclient.NewArchiveRepo(redisCli)
		slog.Info("Using redis stores", "url", cfg.Redis.URL)
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(cfg.Salvage.MigrationsDir); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		deps.Reviews = postgres.NewReviewRepo(db)
		deps.Escalations = postgres.NewEscalationRepo(db)
		deps.Archive = postgres.NewArchiveRepo(db)
		slog.Info("Using postgres operator stores")
	}

	if cfg.Queue.RedisAddr != "" {
		requeuer := queue.NewAsynqRequeuer(asynq.RedisClientOpt{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer requeuer.Close()
		deps.Requeuer = requeuer
		slog.Info("Retry re-submission via asynq", "addr", cfg.Queue.RedisAddr)
	}

	if cfg.Notify.WebhookURL != "" {
		deps.Notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
		slog.Info("Escalation webhook enabled")
	}

	registry := prometheus.NewRegistry()
	deps.Registerer = registry

	engine, err := control.NewEngine(control.Config{
		Workers:         cfg.Salvage.Workers,
		QueueSize:       cfg.Salvage.QueueSize,
		ProcessTimeout:  cfg.Salvage.ProcessTimeout,
		HistoryCapacity: cfg.Salvage.HistoryCapacity,
		ShortDelay:      cfg.Salvage.ShortDelay,
		DefaultDelay:    cfg.Salvage.DefaultDelay,
	}, deps)
	if err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}

	if err := engine.Start(ctx); err != nil {
		slog.Error("Failed to start engine", "error", err)
		os.Exit(1)
	}

	pruner := worker.NewPruner(
		worker.DefaultRetention(),
		deps.Reviews,
		deps.Escalations,
		deps.Archive,
		cfg.Salvage.PruneInterval,
		slog.Default(),
	)
	go pruner.Start(ctx)

	monitor := health.NewMonitor(deps.Reviews, deps.Escalations, engine.GetMetrics)
	server := health.NewServer(monitor, engine, registry, cfg.Server.Port)
	go func() {
		slog.Info("Operator server listening", "port", cfg.Server.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Operator server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Error stopping operator server", "error", err)
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Salvage stopped gracefully")
}
