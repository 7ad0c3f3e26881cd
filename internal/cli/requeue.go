package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/vietddude/salvage/internal/core/config"
	"github.com/vietddude/salvage/internal/infra/postgres"
	"github.com/vietddude/salvage/internal/infra/queue"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue [job_id]",
	Short: "Re-submit a manually reviewed job to its origin queue",
	Args:  cobra.ExactArgs(1),
	Run:   runRequeue,
}

func init() {
	rootCmd.AddCommand(requeueCmd)
}

func runRequeue(cmd *cobra.Command, args []string) {
	jobID := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Queue.RedisAddr == "" {
		slog.Error("No queue backend configured (queue.redis_addr)")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	entries, err := postgres.NewReviewRepo(db).List(ctx)
	if err != nil {
		slog.Error("Failed to list manual review queue", "error", err)
		os.Exit(1)
	}

	for _, entry := range entries {
		if entry.JobID != jobID {
			continue
		}

		requeuer := queue.NewAsynqRequeuer(asynq.RedisClientOpt{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer func() {
			_ = requeuer.Close()
		}()

		task := queue.RetryTask{
			OriginalJobID: entry.JobID,
			Queue:         entry.Queue,
			Payload:       entry.Payload,
			Strategy:      "manual",
			Analysis:      entry.Analysis,
			Priority:      entry.Priority.SchedulingWeight(),
			RetryAt:       time.Now(),
		}
		if err := requeuer.Requeue(ctx, task); err != nil {
			slog.Error("Failed to re-submit job", "job", jobID, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Job %s re-submitted to queue %s\n", jobID, entry.Queue)
		return
	}

	slog.Error("Job not found in manual review queue", "job", jobID)
	os.Exit(1)
}
