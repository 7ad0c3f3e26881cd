package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/salvage/internal/core/config"
	"github.com/vietddude/salvage/internal/infra/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current operator queues",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
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

	reviews, err := postgres.NewReviewRepo(db).List(ctx)
	if err != nil {
		slog.Error("Failed to list manual review queue", "error", err)
		os.Exit(1)
	}
	escalations, err := postgres.NewEscalationRepo(db).List(ctx)
	if err != nil {
		slog.Error("Failed to list escalations", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Manual review: %d entries\n", len(reviews))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tQUEUE\tPRIORITY\tREASON\tFLAGGED")
	for _, e := range reviews {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.JobID, e.Queue, e.Priority, e.FailureReason, e.FlaggedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\nEscalations: %d entries\n", len(escalations))
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tQUEUE\tPRIORITY\tROOT CAUSE\tNOTIFIED\tESCALATED")
	for _, e := range escalations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			e.JobID, e.Queue, e.Priority, e.Analysis.RootCause, e.Notified, e.EscalatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
