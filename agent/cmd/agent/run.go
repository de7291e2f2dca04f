package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/obsidianstack/obs/agent/internal/api"
	"github.com/obsidianstack/obs/agent/internal/auth"
	"github.com/obsidianstack/obs/agent/internal/compute"
	"github.com/obsidianstack/obs/agent/internal/config"
	"github.com/obsidianstack/obs/agent/internal/security"
	"github.com/obsidianstack/obs/agent/internal/source"
	"github.com/obsidianstack/obs/agent/internal/ws"
	"github.com/obsidianstack/obs/pkg/logging"
)

// primeTimeout bounds the first read of a polled or file source.
const primeTimeout = 10 * time.Second

// runFlags returns a fresh flag set on each call.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "agent.yaml",
			Usage:   "path to config file",
			EnvVars: []string{"OBS_AGENT_CONFIG"},
		},
	}
}

// RunAction loads the config, wires sources into the engine and serves the
// HTTP surface until SIGINT or SIGTERM.
func RunAction(c *cli.Context) error {
	configPath := c.String("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	levelVar, err := logging.Setup(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	slog.Info("obs-agent starting", "config", configPath)
	slog.Info("config loaded",
		"http_port", cfg.HTTPPort,
		"network_source", cfg.Network.Type,
		"battery_source", cfg.Battery.Type,
		"observe_changes", cfg.ObserveChanges,
		"auth_mode", cfg.Auth.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	network, err := source.NewNetwork(cfg.Network)
	if err != nil {
		return fmt.Errorf("network source: %w", err)
	}
	battery, err := source.NewBattery(cfg.Battery)
	if err != nil {
		return fmt.Errorf("battery source: %w", err)
	}

	security.CheckSources(ctx, map[string]config.Source{
		"network": cfg.Network,
		"battery": cfg.Battery,
	}, time.Now())

	startSource(ctx, "network", network)
	startSource(ctx, "battery", battery)

	engine := compute.New(cfg.Thresholds,
		compute.WithObserveChanges(cfg.ObserveChanges),
		compute.WithStateLogging(cfg.LogState),
	)

	hub := ws.New(engine, cfg.BroadcastInterval)
	engine.Subscribe(hub.Publish)
	go hub.Run(ctx)

	engine.Start(ctx, network, battery)
	s := engine.Snapshot()
	slog.Info("initial stance",
		"delivery_mode", s.DeliveryMode,
		"connection_capability", s.ConnectionCapability,
		"conservation_preference", s.ConservationPreference,
	)

	// Hot reload: thresholds, state logging and log level.
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			engine.SetThresholds(updated.Thresholds)
			engine.SetStateLogging(updated.LogState)
			if err := logging.SetLevel(levelVar, updated.Log.Level); err != nil {
				slog.Warn("config reload: log level", "err", err)
			}
			slog.Info("config hot-reloaded",
				"bandwidth_high_mbps", updated.Thresholds.HighBandwidthMbps,
				"bandwidth_low_mbps", updated.Thresholds.LowBandwidthMbps,
				"log_state", updated.LogState,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	feeds := api.Feeds{}
	feeds.Network, _ = network.(*source.FeedNetwork)
	feeds.Battery, _ = battery.(*source.FeedBattery)
	guard := auth.APIKeyMiddleware(cfg.Auth.Mode, cfg.Auth.EffectiveHeader(), cfg.Auth.Key())

	httpMux := http.NewServeMux()
	httpMux.Handle("/", api.New(engine, feeds, guard))
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("obs-agent shutting down")
	engine.Stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return httpSrv.Shutdown(shutdownCtx)
}

// startSource primes src when it reads an external system, then starts its
// background loop. Priming failures leave the channel unknown until the next
// successful read.
func startSource(ctx context.Context, channel string, src interface{}) {
	if src == nil {
		slog.Info("channel disabled", "channel", channel)
		return
	}
	if p, ok := src.(source.Primer); ok {
		primeCtx, cancel := context.WithTimeout(ctx, primeTimeout)
		if err := p.Prime(primeCtx); err != nil {
			slog.Warn("source prime failed", "channel", channel, "err", err)
		}
		cancel()
	}
	if r, ok := src.(source.Runner); ok {
		go r.Run(ctx)
	}
}
