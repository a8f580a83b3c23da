package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhct/harvesterd/internal/control"
)

var resetUser string

var resetCmd = &cobra.Command{
	Use:   "reset-failed",
	Short: "Return failed jobs to pending and queue them for execution",
	Run:   runResetFailed,
}

func init() {
	resetCmd.Flags().StringVar(&resetUser, "user", "", "only reset jobs for this user")
	rootCmd.AddCommand(resetCmd)
}

func runResetFailed(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewHarvester(cfg)
	if err != nil {
		slog.Error("Failed to initialize Harvester", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	n, err := app.ResetFailed(context.Background(), resetUser)
	if err != nil {
		slog.Error("Failed to reset jobs", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Reset %d failed jobs to pending\n", n)
}
