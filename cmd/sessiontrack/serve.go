package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	httpAdapter "github.com/venuekit/sessiontrack/internal/adapters/http"
	"github.com/venuekit/sessiontrack/internal/adapters/memory"
	redisAdapter "github.com/venuekit/sessiontrack/internal/adapters/redis"
	"github.com/venuekit/sessiontrack/internal/config"
	"github.com/venuekit/sessiontrack/internal/logging"
	"github.com/venuekit/sessiontrack/pkg/persistence/middleware"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session admin HTTP server",
	Long:  `Starts the sessiontrack HTTP server, exposing the team session API backed by the configured store.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		port, _ := cmd.Flags().GetString("port")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if port != "" {
			cfg.ListenAddr = ":" + port
		}

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			fmt.Printf("Error in configuration: %v\n", err)
			os.Exit(1)
		}
		logger := logging.New(level)

		var repo ports.SessionRepository
		switch cfg.Backend {
		case config.BackendMemory:
			repo = memory.NewStore(memory.WithLogger(logger))
		default:
			store := redisAdapter.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
				redisAdapter.WithPrefix(cfg.KeyPrefix),
				redisAdapter.WithScanCount(cfg.ScanCount),
				redisAdapter.WithLogger(logger),
			)
			defer store.Close()
			repo = store
		}

		repo = middleware.NewMetricsMiddleware(prometheus.DefaultRegisterer)(repo)

		srv := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: httpAdapter.NewHandler(repo, logger),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting sessiontrack server", "addr", srv.Addr, "backend", cfg.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			logger.Error("server error", "err", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "err", err)
				}
			}
			logger.Info("sessiontrack server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides listen_addr from config)")
}
