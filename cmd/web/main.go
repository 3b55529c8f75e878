package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lazycashier/internal/config"
	"lazycashier/internal/middleware"
	"lazycashier/internal/observability"
	"lazycashier/internal/server"
	"lazycashier/internal/services"
	"lazycashier/internal/ui/templates"
)

const (
	version        = "1.0.0"
	renderTimeout  = 10 * time.Second
	dashboardTitle = "LazyCashier Analytics"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(dashboardTitle).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler wires the provider selected by cfg behind the full middleware
// chain. The returned provider is the one the handler serves from.
func newHandler(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (http.Handler, services.AnalyticsProvider, error) {
	provider, err := services.New(cfg.Analytics, services.Options{
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, nil, err
	}

	srv := server.NewServer(provider, logger, server.Options{
		Metrics:        metrics,
		StreamInterval: cfg.Analytics.StreamInterval,
		Version:        version,
		Templates:      &server.TemplateHandlers{Dashboard: handleDashboard},
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(metrics),
	)

	return middlewareChain(srv), provider, nil
}

func run(cfg *config.Config) error {
	logger := observability.NewLogger(cfg.Logger, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"variant", cfg.Analytics.Variant,
		"addr", cfg.Address(),
		"allowed_origins", cfg.Security.AllowedOrigins,
	)

	tp := observability.NewTracerProvider(cfg.Tracing, version)
	metrics := observability.NewMetrics()

	handler, provider, err := newHandler(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build analytics provider", "error", err)
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		stats := provider.Stats()
		logger.Info("shutting down analytics provider",
			"variant", stats.Variant,
			"cache_hits", stats.CacheHits,
			"cache_misses", stats.CacheMisses,
			"expense_updates", stats.ExpenseUpdates,
		)
		return nil
	})
	if tp != nil {
		gracefulServer.RegisterShutdownHook(tp.Shutdown)
	}

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "lazycashier",
		Short:         "LazyCashier POS analytics backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			}

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML/JSON/TOML config file")
	flags.String("variant", "", "analytics provider variant: direct or stub")
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("seed-file", "", "YAML file seeding the direct analytics record")

	for key, name := range map[string]string{
		"analytics.variant":   "variant",
		"server.host":         "host",
		"server.port":         "port",
		"logger.level":        "log-level",
		"analytics.seed_file": "seed-file",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("lazycashier exited", "error", err)
		os.Exit(1)
	}
}
