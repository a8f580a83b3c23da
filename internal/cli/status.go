package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minhct/harvesterd/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job counts and recent failures",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM content_processing_jobs GROUP BY status ORDER BY status")
	if err != nil {
		slog.Error("Failed to query jobs", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\n", status, count)
	}
	_ = w.Flush()

	failed, err := db.QueryContext(ctx,
		`SELECT id, user_id, content_type, retry_count, error_message
		 FROM content_processing_jobs WHERE status = 'failed'
		 ORDER BY updated_at DESC LIMIT 10`)
	if err != nil {
		return
	}
	defer func() {
		_ = failed.Close()
	}()

	fmt.Println()
	fw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(fw, "FAILED JOB\tUSER\tTYPE\tRETRIES\tERROR")
	for failed.Next() {
		var id, userID, contentType, errMsg string
		var retries int
		if err := failed.Scan(&id, &userID, &contentType, &retries, &errMsg); err != nil {
			continue
		}
		if len(errMsg) > 60 {
			errMsg = errMsg[:60] + "..."
		}
		_, _ = fmt.Fprintf(fw, "%s\t%s\t%s\t%d\t%s\n", id, userID, contentType, retries, errMsg)
	}
	_ = fw.Flush()
}
