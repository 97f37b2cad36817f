package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/quotesvc/internal/api"
	"github.com/newthinker/quotesvc/internal/config"
	"github.com/newthinker/quotesvc/internal/logger"
	"github.com/newthinker/quotesvc/internal/metrics"
	"github.com/newthinker/quotesvc/internal/provider"
	"github.com/newthinker/quotesvc/internal/provider/twelvedata"
	"github.com/newthinker/quotesvc/internal/provider/yahoo"
	"github.com/newthinker/quotesvc/internal/quote"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quote server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load config; without a file the defaults and environment apply
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Initialize logger
	log, err := logger.New(logger.Options{Development: debug, Level: cfg.Log.Level})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	server, err := buildServer(cfg, log)
	if err != nil {
		return err
	}

	log.Info("starting quote server",
		zap.String("addr", server.Addr()),
		zap.String("provider", cfg.Provider.Name),
		zap.String("symbol", cfg.Quote.Symbol),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info("shutting down quote server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

// buildServer wires the configured provider, the retrieval service and the
// HTTP routes together.
func buildServer(cfg *config.Config, log *zap.Logger) (*api.Server, error) {
	factory, err := newProviderRegistry(cfg, log).MustGet(cfg.Provider.Name)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}

	start, end, err := cfg.Quote.Range()
	if err != nil {
		return nil, fmt.Errorf("quote range: %w", err)
	}

	var (
		reg         *metrics.Registry
		rec         quote.Recorder
		metricsPath string
	)
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		rec = reg
		metricsPath = cfg.Metrics.Path
	}

	svc := quote.NewService(factory, quote.Options{
		Symbol:     cfg.Quote.Symbol,
		RangeStart: start,
		RangeEnd:   end,
	}, log, rec)

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		MetricsPath: metricsPath,
	}, api.Dependencies{
		Quotes:  svc,
		Metrics: reg,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	return server, nil
}

// newProviderRegistry registers every built-in provider with its settings
// from cfg. Only the selected one is ever opened.
func newProviderRegistry(cfg *config.Config, log *zap.Logger) *provider.Registry {
	r := provider.NewRegistry()
	r.Register(yahoo.Name, yahoo.NewFactory(yahoo.Config{
		BaseURL:     cfg.Provider.Yahoo.BaseURL,
		Interval:    cfg.Provider.Yahoo.Interval,
		LatestRange: cfg.Provider.Yahoo.LatestRange,
		Timeout:     cfg.Provider.Timeout,
	}))
	r.Register(twelvedata.Name, twelvedata.NewFactory(twelvedata.Config{
		APIKey:   cfg.Provider.TwelveData.APIKey,
		BaseURL:  cfg.Provider.TwelveData.BaseURL,
		Interval: cfg.Provider.TwelveData.Interval,
		Timeout:  cfg.Provider.Timeout,
	}, log.Named("twelvedata")))
	return r
}
