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

var processCmd = &cobra.Command{
	Use:   "process [job_id]",
	Short: "Execute a single job immediately, bypassing the queue",
	Args:  cobra.ExactArgs(1),
	Run:   runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	jobID := args[0]

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

	if err := app.ProcessJob(context.Background(), jobID); err != nil {
		slog.Error("Job execution failed", "job_id", jobID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Processed job %s\n", jobID)
}
