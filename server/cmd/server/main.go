// Command obs-server serves static pages with the delivery-stance classes
// derived from each request's Client Hints asserted on <html>.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/obs/pkg/logging"
	"github.com/obsidianstack/obs/pkg/types"
	"github.com/obsidianstack/obs/server/internal/config"
	"github.com/obsidianstack/obs/server/internal/hints"
	"github.com/obsidianstack/obs/server/internal/markup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	root := flag.String("root", "", "serve pages from this directory (overrides server.root)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if *root != "" {
		cfg.Server.Root = *root
	}

	if _, err := logging.Setup(os.Stdout, cfg.Server.Log.Format, cfg.Server.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}

	slog.Info("obs-server starting", "config", *configPath)
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"root", cfg.Server.Root,
		"accept_ch", cfg.Server.Hints.AcceptCH,
		"bandwidth_high_mbps", cfg.Server.Thresholds.HighBandwidthMbps,
		"bandwidth_low_mbps", cfg.Server.Thresholds.LowBandwidthMbps,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	th := cfg.Server.Thresholds
	withHints := hints.Middleware(hints.Options{
		Thresholds: th,
		AcceptCH:   cfg.Server.Hints.AcceptCH,
		CriticalCH: cfg.Server.Hints.CriticalCH,
	})
	withClasses := markup.Middleware(func(r *http.Request) (types.State, bool) {
		return hints.FromContext(r.Context())
	}, th)

	httpMux := http.NewServeMux()
	httpMux.Handle("/stance", hints.StanceHandler(th))
	httpMux.Handle("/", withClasses(http.FileServer(http.Dir(cfg.Server.Root))))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           withHints(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("obs-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
