package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/pkg/bpstats"
	"github.com/groundstation/bplib/pkg/channel"
)

var serveSweepInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run every configured channel as a long-lived daemon",
	Long: `Open every channel listed in the config file, register it with
a background registry that sweeps pending ACS on a timer, and (if
metrics.enabled is set) serve Prometheus counters on /metrics until
interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&serveSweepInterval, "sweep-interval", time.Second, "how often the registry flushes pending ACS for every channel")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		bpstats.InitRegistry(prometheus.NewRegistry())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := channel.NewRegistry(serveSweepInterval)
	for _, cc := range cfg.Channels {
		ch, err := openConfiguredChannel(ctx, cfg, cc)
		if err != nil {
			return fmt.Errorf("open channel %s->%s: %w", cc.Local, cc.Remote, err)
		}
		if err := reg.RegisterChannel(ch); err != nil {
			return err
		}
		logger.Info("channel registered", "route", ch.Route().String())
	}

	reg.Start(ctx)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics.Port)
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("bpctl serve running, press Ctrl+C to stop", "channels", len(cfg.Channels))
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received")

	cancel()
	if err := reg.Stop(); err != nil {
		logger.Warn("registry stop error", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	return nil
}

func newMetricsServer(port int) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/metrics", promhttp.HandlerFor(bpstats.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP)
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}
