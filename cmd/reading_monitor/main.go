// Reading monitor follows a collector's live feed and prints each reading as a JSON line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/weather_telemetry/pkg/config"
	"github.com/NotCoffee418/weather_telemetry/pkg/livefeed"
	"github.com/NotCoffee418/weather_telemetry/pkg/logging"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/NotCoffee418/weather_telemetry/pkg/wxutils"
	"github.com/spf13/cobra"
)

var (
	configPath string
	host       string
	deviceID   string
	derived    bool
)

var rootCmd = &cobra.Command{
	Use:          "reading_monitor",
	Short:        "Print live readings from a collector",
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultMonitorConfigPath(), "config file, created with defaults when missing")
	flags.StringVar(&host, "host", "", "collector host:port, overrides collector_host")
	flags.StringVar(&deviceID, "device", "", "device id, overrides device_id")
	flags.BoolVar(&derived, "derived", false, "print estimated power generation alongside each reading")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadMonitorConfig(configPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.CollectorHost = host
	}
	if deviceID != "" {
		cfg.DeviceID = deviceID
	}

	logger, err := logging.New(cfg.Level, cfg.Format, "reading_monitor")
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l := &livefeed.Listener{Host: cfg.CollectorHost, DeviceID: cfg.DeviceID, Logger: logger}
	return l.Run(ctx, handleReading)
}

func handleReading(reading *types.Reading) {
	if derived {
		fmt.Printf("%s power_generation_wh=%s\n", reading.ToJsonBytes(), types.Float(wxutils.PowerGenerationWh(float64(reading.WindSpeed))))
		return
	}
	fmt.Println(string(reading.ToJsonBytes()))
}
