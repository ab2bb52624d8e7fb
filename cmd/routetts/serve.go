package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Jellypod-Inc/route-tts/internal/app"
	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/internal/health"
	"github.com/Jellypod-Inc/route-tts/internal/observe"
	"github.com/Jellypod-Inc/route-tts/internal/server"
)

const defaultListenAddr = ":8080"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var serveFlags struct {
	addr           string
	reloadInterval time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve speech generation and voice management over HTTP",
	Long: `Serve starts the HTTP API. Voice and generation changes in the config
file are picked up without a restart; provider settings need one.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (overrides server.listen_addr)")
	f.DurationVar(&serveFlags.reloadInterval, "reload-interval", 5*time.Second, "config file polling interval")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	cfg, a, err := newApp(app.WithLogLevel(logLevel))
	if err != nil {
		return err
	}
	printStartupSummary(cfg, a)

	watcher, err := config.NewWatcher(configPath, a.ApplyConfig, config.WithInterval(serveFlags.reloadInterval))
	if err != nil {
		return err
	}

	// ── HTTP ──────────────────────────────────────────────────────────────────
	addr := serveFlags.addr
	if addr == "" {
		addr = cfg.Server.ListenAddr
	}
	if addr == "" {
		addr = defaultListenAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		watcher.Stop()
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	opts := []server.Option{
		server.WithHealth(health.New(a.Checkers()...)),
		server.WithMetricsHandler(tel.MetricsHandler()),
	}
	if tls := cfg.Server.TLS; tls != nil {
		opts = append(opts, server.WithTLS(tls.CertFile, tls.KeyFile))
	}
	srv := server.New(a, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, ln) })
	g.Go(func() error { return watcher.Wait(gctx) })

	slog.Info("server ready, press Ctrl+C to shut down", "addr", ln.Addr().String())
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}
