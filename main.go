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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aldehir/cache-service/cache"
	"github.com/aldehir/cache-service/config"
	"github.com/aldehir/cache-service/metrics"
	"github.com/aldehir/cache-service/store"
	"github.com/aldehir/cache-service/store/file"
	"github.com/aldehir/cache-service/store/memory"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cache-service",
	Short: "Write-through LRU cache in front of a durable record store",
	Long: `cache-service keeps a bounded set of records in memory. When the cache is
full the least recently used record is written to the store before a new one
is admitted, and reads that miss the cache are served from the store.

Run "cache-service serve" to start the HTTP service; the other commands are
clients for a running service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}
		for key, flag := range serveFlags {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return startServer(cfg)
	},
}

func Execute() {
	os.Exit(run(rootCmd))
}

// run executes root and reports a failure through the renderer, returning the
// process exit code.
func run(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		newRenderer(root).Error(err.Error())
		return 1
	}
	return 0
}

func newLogger(verbose bool) *slog.Logger {
	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// openStore returns the configured backend and a function that releases it.
func openStore(cfg config.Store) (store.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), func() error { return nil }, nil
	case config.BackendFile:
		s, err := file.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func startServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg.Verbose)

	backing, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	c, err := cache.New(backing, cfg.MaxSize, cache.WithLogger(logger))
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		client, err := metrics.NewClient(ctx, cfg.Metrics.Profile, cfg.Metrics.Region)
		if err != nil {
			return err
		}
		publisher := metrics.NewPublisher(client, cfg.Metrics.Namespace, cfg.Metrics.Interval, c.Stats, logger)
		if err := publisher.Start(); err != nil {
			return err
		}
		defer publisher.Stop()
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: NewServer(c, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", cfg.Listen, "max_size", cfg.MaxSize, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// serveFlags maps config keys to the serve flags that override them.
var serveFlags = map[string]string{
	"listen":          "listen",
	"max_size":        "max-size",
	"verbose":         "verbose",
	"store.backend":   "store",
	"store.path":      "store-path",
	"metrics.enabled": "metrics",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./cache-service.yaml)")

	defaults := viper.New()
	config.SetDefaults(defaults)

	serveCmd.Flags().StringP("listen", "l", defaults.GetString("listen"), "Address to listen on")
	serveCmd.Flags().IntP("max-size", "m", defaults.GetInt("max_size"), "Maximum number of cached records")
	serveCmd.Flags().BoolP("verbose", "v", false, "Enable debug output")
	serveCmd.Flags().String("store", defaults.GetString("store.backend"), "Store backend: memory or file")
	serveCmd.Flags().String("store-path", defaults.GetString("store.path"), "Records file for the file backend")
	serveCmd.Flags().Bool("metrics", false, "Publish cache metrics to CloudWatch")

	rootCmd.AddCommand(serveCmd)
	addClientCommands(rootCmd)
}

func main() {
	Execute()
}
