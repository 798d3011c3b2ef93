package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	startTime string
	endTime   string
)

var republishEventsCmd = &cobra.Command{
	Use:   "republish_events",
	Short: "Republish journey snapshots and rebuild the TAT index",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig()

		// Parse time range
		var start, end *time.Time
		if startTime != "" {
			t, err := time.ParseInLocation(time.DateTime, startTime, time.UTC)
			if err != nil {
				logger.Fatalf("Failed to parse start time: %v", err)
			}
			start = &t
		}
		if endTime != "" {
			t, err := time.ParseInLocation(time.DateTime, endTime, time.UTC)
			if err != nil {
				logger.Fatalf("Failed to parse end time: %v", err)
			}
			end = &t
		}

		app, err := bootstrap(cfg, logger)
		if err != nil {
			logger.Fatal(err)
		}

		// Create context
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		defer app.close(ctx)

		count, err := app.journeys.Republish(ctx, start, end)
		if err != nil {
			logger.Fatalf("Failed to republish events: %v", err)
		}

		logger.Infof("Republished %d journeys", count)
	},
}

func init() {
	// Default to 24 hours ago
	defaultStart := time.Now().UTC().Add(-24 * time.Hour).Format(time.DateTime)

	republishEventsCmd.Flags().StringVarP(&startTime, "start", "s", defaultStart, "Start of the updated_at window, UTC (format: 2006-01-02 15:04:05)")
	republishEventsCmd.Flags().StringVarP(&endTime, "end", "e", "", "End of the updated_at window, UTC (format: 2006-01-02 15:04:05)")
}
