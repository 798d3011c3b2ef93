package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/yard/internal/api"
	"example.com/backstage/services/yard/internal/service"
	"example.com/backstage/services/yard/internal/telemetry"
)

var consume bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := loadConfig()

		app, err := bootstrap(cfg, logger)
		if err != nil {
			logger.Fatal(err)
		}

		// Create API handler
		handler := api.NewHandler(app.journeys, api.WithHealthCheck("database", func(ctx context.Context) error {
			sqlDB, err := app.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}))

		// Create middleware
		middleware := api.NewMiddleware(logger)

		// Create router
		router := mux.NewRouter()

		// Apply middleware
		router.Use(middleware.Logger)
		router.Use(middleware.Recover)
		router.Use(middleware.CORS(cfg.Server.CorsWhiteList))
		router.Use(telemetry.Middleware(app.nrApp))
		router.Use(api.MetricsMiddleware)

		// Register routes
		handler.RegisterRoutes(router)

		// Setup server
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Infof("Starting server on %s", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		})

		if consume && app.bus != nil {
			processor := service.NewRegistrationProcessor(app.journeys)
			g.Go(func() error {
				logger.WithField("queue", cfg.MessageBus.RegistrationQueue).Info("Starting gate registration consumer")
				return consumeRegistrations(ctx, app.bus, cfg.MessageBus.RegistrationQueue, processor, logger)
			})
		}

		g.Go(func() error {
			<-ctx.Done()

			// Create context with timeout for graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			logger.Info("Shutting down server...")
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			logger.Errorf("Server error: %v", err)
		}

		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		app.close(closeCtx)

		logger.Info("Server shutdown complete")
	},
}

func init() {
	serveCmd.Flags().BoolVar(&consume, "consume", true, "consume gate registrations from the message bus when it is enabled")
}
