// Package main implements the interlink node: it loads the node
// configuration and channel definitions, deploys every channel on one
// engine, and runs until signalled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/config"
	"github.com/careroute/interlink/connector"
	fileconnector "github.com/careroute/interlink/connector/file"
	natsconnector "github.com/careroute/interlink/connector/nats"
	"github.com/careroute/interlink/engine"
	"github.com/careroute/interlink/metric"
	"github.com/careroute/interlink/natsclient"
	"github.com/careroute/interlink/script"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "interlink"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate node configuration plus every channel definition
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	channels, err := loadChannels(cfg)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "channels", len(channels))
		return nil
	}

	ctx := context.Background()

	// Setup core infrastructure
	metricsRegistry := metric.NewMetricsRegistry()

	natsClient, err := buildNATSClient(cfg, metricsRegistry)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := connectToNATS(ctx, natsClient); err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	eng, err := buildEngine(cfg, logger, natsClient, metricsRegistry)
	if err != nil {
		return err
	}

	if err := deployChannels(eng, channels); err != nil {
		return err
	}

	metricsServer := startMetricsServer(cfg, metricsRegistry)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	// Run until signalled
	return runWithSignalHandling(ctx, eng, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting Interlink (healthcare data integration engine)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadChannels reads every definition the config names: the channel
// directory first, then any explicitly listed files. Cross-source
// duplicate IDs and names are caught at deploy time.
func loadChannels(cfg *config.Config) ([]*channel.Channel, error) {
	var channels []*channel.Channel
	if cfg.Channels.Dir != "" {
		loaded, err := channel.LoadDir(cfg.Channels.Dir)
		if err != nil {
			return nil, err
		}
		channels = loaded
	}
	for _, path := range cfg.Channels.Files {
		ch, err := channel.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// buildNATSClient creates the broker client from the node configuration.
func buildNATSClient(cfg *config.Config, registry *metric.MetricsRegistry) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithMetrics(registry),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	return natsclient.NewClient(cfg.NATS.URL, opts...)
}

// connectToNATS establishes the NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS", "url", natsClient.URL())
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// buildEngine assembles the sandbox, the connector registry and the engine.
func buildEngine(
	cfg *config.Config,
	logger *slog.Logger,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
) (*engine.Engine, error) {
	sandbox, err := script.New(script.Config{
		Timeout:   cfg.Script.Timeout,
		CacheSize: cfg.Script.CacheSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create script sandbox: %w", err)
	}

	connectors := connector.NewRegistry()
	if err := registerConnectors(connectors); err != nil {
		return nil, fmt.Errorf("register connectors: %w", err)
	}

	eng, err := engine.NewEngine(cfg.Server.ID, engine.Dependencies{
		Connectors: connectors,
		Sandbox:    sandbox,
		NATSClient: natsClient,
		Metrics:    registry,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	slog.Info("Engine created", "server_id", eng.ServerID())
	return eng, nil
}

// registerConnectors installs the built-in connector types. External
// transports register their own factories when embedding the engine.
func registerConnectors(registry *connector.Registry) error {
	if err := registry.RegisterSource("nats", natsconnector.NewSource); err != nil {
		return err
	}
	if err := registry.RegisterDestination("nats", natsconnector.NewDestination); err != nil {
		return err
	}
	return registry.RegisterDestination("file", fileconnector.NewDestination)
}

// deployChannels deploys every loaded definition. A definition that fails
// to deploy aborts startup; --validate exists to catch these earlier.
func deployChannels(eng *engine.Engine, channels []*channel.Channel) error {
	for _, ch := range channels {
		if _, err := eng.Deploy(*ch); err != nil {
			return fmt.Errorf("deploy channel %q: %w", ch.Name, err)
		}
	}
	if len(channels) == 0 {
		slog.Warn("No channel definitions found; engine will idle")
	}
	return nil
}

// startMetricsServer exposes /metrics and /health when enabled. A serve
// failure costs scrape visibility, not message flow, so it only logs.
func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry) *metric.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	slog.Info("Metrics server listening", "address", srv.Address())
	return srv
}

// runWithSignalHandling starts the channels and handles shutdown signals.
// The engine runs under a long-lived context; shutdown goes through
// Stop so queued payloads drain instead of being dropped by context
// cancellation.
func runWithSignalHandling(ctx context.Context, eng *engine.Engine, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	slog.Info("Interlink started", "channels", len(eng.ChannelIDs()))

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := eng.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Interlink shutdown complete")
	return nil
}
