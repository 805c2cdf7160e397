// Command miniredis-server runs the in-memory key/value server.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fredguile/miniredis/internal/config"
	"github.com/fredguile/miniredis/internal/logging"
	"github.com/fredguile/miniredis/internal/server"
	"github.com/fredguile/miniredis/internal/store"
)

var (
	configPath     string
	port           int
	maxConnections int64
	logLevel       string
	metricsAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "miniredis-server",
	Short: "Run the miniredis key/value server",
	RunE:  run,
	Example: "# miniredis-server --port 6380 --max-connections 500",
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Optional YAML configuration file path")
	rootCmd.Flags().IntVar(&port, "port", 0, "TCP port to listen on (0 keeps the config/default value)")
	rootCmd.Flags().Int64Var(&maxConnections, "max-connections", 0, "Maximum concurrent connections (0 keeps the config/default value)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (empty keeps the config/default value)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9121", "Address to serve Prometheus metrics on")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port != 0 {
		cfg.Port = port
	}
	if maxConnections != 0 {
		cfg.MaxConnections = maxConnections
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logging.New(cfg.LogLevel)
	defer log.Sync()

	metrics := server.NewMetrics()
	st := store.New(log,
		store.WithEvictionHook(metrics.EvictionSweeps.Inc),
		store.WithPublishHook(func(count int) { metrics.PublishFanout.Add(float64(count)) }),
	)
	defer st.Close()

	tcp, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind: %w", err)
	}
	log.Info("listening", zap.Int("port", cfg.Port), zap.Int64("max_connections", cfg.MaxConnections))

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer metricsSrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener := server.NewListener(tcp, st, cfg.MaxConnections, log, metrics)
	return listener.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
