package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"example.com/backstage/services/yard/config"
)

var (
	// Flags
	cfgFile string
	debug   bool

	// Root command
	rootCmd = &cobra.Command{
		Use:   "yard-service",
		Short: "Yard Checkpoint Service",
		Long: `Yard Checkpoint Service for tracking trucks through the plant gate.

Functions:
- Register truck arrivals from the gate and over a REST HTTP server
- Move journeys through gate, inside, completion and exit checkpoints
- Reconcile weighbridge readings against invoice weights
- Report turn-around time against per-material targets
- Publish journey updates to downstream consumers`,
	}
)

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(readEventsCmd)
	rootCmd.AddCommand(republishEventsCmd)
}

// initConfig initializes the configuration
func initConfig() {
	// Setup logging
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// loadConfig loads the configuration and builds the logger it describes
func loadConfig() (*config.Config, *logrus.Logger) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	if cfg.Logging.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	// Packages below cmd log through the standard logger
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(level)

	return cfg, logger
}
