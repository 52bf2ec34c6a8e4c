// Collector API stores readings posted by sensor stations and serves them back.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/collector"
	"github.com/NotCoffee418/weather_telemetry/pkg/config"
	"github.com/NotCoffee418/weather_telemetry/pkg/logging"
	"github.com/NotCoffee418/weather_telemetry/pkg/readingdb"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "collector_api",
	Short:        "Receive and serve weather readings",
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultCollectorConfigPath(), "config file, created with defaults when missing")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadCollectorConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Level, cfg.Format, "collector_api")
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	db, err := readingdb.Open(cfg.DbPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	server := collector.NewServer(collector.NewStore(cfg.DataDir), db, logger)
	defer server.Hub().Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	retention := time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour
	go server.RunAggregator(ctx, cfg.AggregateInterval.Duration, retention)

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	httpServer := &http.Server{
		Addr:              listener,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting collector API", "listen", listener, "data_dir", cfg.DataDir, "db", cfg.DbPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
