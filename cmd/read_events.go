package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"example.com/backstage/services/yard/internal/service"
)

var (
	messageCount int
)

var readEventsCmd = &cobra.Command{
	Use:   "read_events",
	Short: "Read one batch of gate registrations from the message queue",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig()
		if !cfg.MessageBus.Enabled {
			logger.Fatal("Message bus is disabled; set messagebus.enabled")
		}

		app, err := bootstrap(cfg, logger)
		if err != nil {
			logger.Fatal(err)
		}

		// Create context
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		defer app.close(ctx)

		queue := cfg.MessageBus.RegistrationQueue
		logger.Infof("Reading from queue: %s", queue)

		processor := service.NewRegistrationProcessor(app.journeys)
		n, err := drainRegistrations(ctx, app.bus, queue, messageCount, processor, logger)
		if err != nil {
			logger.Errorf("Failed to read messages from queue %s: %v", queue, err)
			return
		}
		logger.Infof("Received %d messages from queue %s", n, queue)
	},
}

func init() {
	readEventsCmd.Flags().IntVarP(&messageCount, "count", "c", 100, "Number of messages to read from the queue")
}
