// Sensor ingest polls the serial weather sensor, logs every reading to CSV
// and forwards it to the collector.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/weather_telemetry/pkg/config"
	"github.com/NotCoffee418/weather_telemetry/pkg/forwarder"
	"github.com/NotCoffee418/weather_telemetry/pkg/ingest"
	"github.com/NotCoffee418/weather_telemetry/pkg/logging"
	"github.com/NotCoffee418/weather_telemetry/pkg/port_reader"
	"github.com/NotCoffee418/weather_telemetry/pkg/render"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "sensor_ingest",
	Short:        "Read the serial weather sensor and forward readings",
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultIngestConfigPath(), "config file, created with defaults when missing")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadIngestConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Level, cfg.Format, "sensor_ingest")
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	forwarders := []forwarder.Forwarder{
		forwarder.NewHTTPForwarder(cfg.CollectorURL, cfg.DeviceID, cfg.ForwardTimeout.Duration),
	}
	if cfg.MQTTBroker != "" {
		mq := forwarder.NewMQTTForwarder(cfg.MQTTBroker, cfg.MQTTTopic, cfg.DeviceID, cfg.ForwardTimeout.Duration)
		if err := mq.Connect(); err != nil {
			logger.Warn("mqtt broker not reachable yet", "broker", cfg.MQTTBroker, "error", err)
		}
		defer mq.Close()
		forwarders = append(forwarders, mq)
	}

	var renderer render.Renderer = render.Nop{}
	if cfg.StaticDir != "" {
		renderer = render.NewSnapshotRenderer(cfg.StaticDir, cfg.PlotWindow)
	}

	var resolver ingest.IPResolver = &ingest.PublicIPResolver{
		Client:      &http.Client{Timeout: cfg.ForwardTimeout.Duration},
		LookupURL:   cfg.IPLookupURL,
		PingHost:    cfg.PingHost,
		PingTimeout: cfg.ForwardTimeout.Duration,
	}
	if cfg.OriginIP != "" {
		logger.Info("using fixed origin address", "ip", cfg.OriginIP)
		resolver = ingest.StaticResolver(cfg.OriginIP)
	}

	loop := ingest.New(
		ingest.Config{
			DeviceID:          cfg.DeviceID,
			Layout:            cfg.Layout,
			WarmupDiscard:     cfg.WarmupDiscard,
			MaxDecodeRetries:  cfg.MaxDecodeRetries,
			StartupDelay:      cfg.StartupDelay.Duration,
			DeviceRetryDelay:  cfg.DeviceRetryDelay.Duration,
			NetworkRetryDelay: cfg.NetworkRetryDelay.Duration,
			DecodeRetryDelay:  cfg.DecodeRetryDelay.Duration,
			SettleDelay:       cfg.SettleDelay.Duration,
			RotationCeiling:   cfg.RotationCeiling(),
			RotationChunk:     cfg.RowsPerDay,
			TailSize:          cfg.PlotWindow,
		},
		ingest.Deps{
			Resolver:  resolver,
			Connector: &ingest.SerialConnector{
				Options: port_reader.Options{
					PortName:    cfg.SerialDevice,
					Baudrate:    cfg.Baudrate,
					ReadTimeout: cfg.ReadTimeout.Duration,
					FrameLength: cfg.FrameLength,
				},
				InitCommand:     cfg.InitCommand,
				HandshakeLength: cfg.HandshakeLength,
				Logger:          logger,
			},
			OpenLog:    ingest.CSVLogOpener(cfg.DataDir, cfg.DeviceID, cfg.LogLayout),
			Renderer:   renderer,
			Forwarders: forwarders,
			Logger:     logger,
		},
	)

	logger.Info("starting sensor ingest",
		"device", cfg.DeviceID,
		"serial", cfg.SerialDevice,
		"collector", cfg.CollectorURL,
		"data_dir", cfg.DataDir,
	)
	err = loop.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("interrupt received, shutting down")
		return nil
	}
	return err
}
