package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhct/harvesterd/internal/control"
	"github.com/minhct/harvesterd/internal/core/domain"
)

var (
	scheduleUser      string
	scheduleDate      string
	scheduleImmediate bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule processing jobs for one user or all enabled users",
	Run:   runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleUser, "user", "", "schedule a single user instead of the full fanout")
	scheduleCmd.Flags().StringVar(&scheduleDate, "date", "", "processing date as YYYY-MM-DD (default today)")
	scheduleCmd.Flags().BoolVar(&scheduleImmediate, "immediate", false, "run the jobs now instead of at the daily trigger")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	date := domain.Today()
	if scheduleDate != "" {
		parsed, err := time.Parse("2006-01-02", scheduleDate)
		if err != nil {
			fmt.Printf("Invalid date %q: %v\n", scheduleDate, err)
			os.Exit(1)
		}
		date = domain.DateOf(parsed)
	}

	app, err := control.NewHarvester(cfg)
	if err != nil {
		slog.Error("Failed to initialize Harvester", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	var jobs []*domain.Job
	if scheduleUser != "" {
		jobs, err = app.ScheduleUser(ctx, scheduleUser, date, scheduleImmediate)
	} else {
		jobs, err = app.ScheduleDaily(ctx, date)
	}
	if err != nil {
		slog.Error("Scheduling failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Scheduled %d jobs for %s\n", len(jobs), date.Format("2006-01-02"))
}
