// Package main is the entry point for the shelf binary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/shelf/internal/app"
	"github.com/polisai/shelf/pkg/config"
	"github.com/polisai/shelf/pkg/logging"
	"github.com/polisai/shelf/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

// CLIConfig holds the parsed CLI configuration
type CLIConfig struct {
	Config   string
	LogLevel string
	Port     int
	Pretty   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelf",
		Short: "Bookstore and cafe widgets served as JSON",
		Long: `shelf fetches catalog, new-release and menu records, projects them into
display views and serves them with a rotating testimonial carousel and a
register/sign-in form.

Example:
  shelf serve --config shelf.yaml
  shelf fetch menu --category coffee`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error); overrides the file")
	rootCmd.PersistentFlags().Bool("pretty", false, "Enable pretty console logging")

	rootCmd.AddCommand(newServeCmd(), newFetchCmd(), newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "Port to listen on; overrides the file")
	return cmd
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "fetch <widget>",
		Short:     "Load one widget and print its view as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.WidgetBooks, config.WidgetUpcoming, config.WidgetMenu, config.WidgetTestimonials},
		RunE:      runFetch,
	}
	cmd.Flags().String("category", "", "Only print items of this category")
	cmd.Flags().Duration("timeout", 30*time.Second, "Time allowed for the load")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "shelf %s\n", version)
			return err
		},
	}
}

// parseCLIConfig reads the flags shared by every command.
func parseCLIConfig(cmd *cobra.Command) (*CLIConfig, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	pretty, err := cmd.Flags().GetBool("pretty")
	if err != nil {
		return nil, fmt.Errorf("failed to get pretty flag: %w", err)
	}

	cli := &CLIConfig{Config: configPath, LogLevel: logLevel, Pretty: pretty}
	if cmd.Flags().Lookup("port") != nil {
		if cli.Port, err = cmd.Flags().GetInt("port"); err != nil {
			return nil, fmt.Errorf("failed to get port flag: %w", err)
		}
	}
	return cli, nil
}

// loadConfig reads the configuration file, if any, and applies CLI overrides.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, cli); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides applies CLI flags on top of file values.
func applyOverrides(cfg *config.Config, cli *CLIConfig) error {
	if cli.Port > 0 {
		cfg.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Pretty {
		cfg.Logging.Pretty = true
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cli, err := parseCLIConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		logger.Error("Failed to set up telemetry", "error", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
	}

	a, err := app.New(ctx, app.Options{Config: cfg, Metrics: metrics, Logger: logger})
	if err != nil {
		logger.Error("Failed to initialize shelf", "error", err)
		return err
	}

	if cli.Config != "" {
		loader, err := config.NewLoader(cli.Config, logger, metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := loader.Close(); err != nil {
				logger.Error("Failed to close config watcher", "error", err)
			}
		}()
		err = loader.Watch(func(next *config.Config) {
			if err := applyOverrides(next, cli); err != nil {
				logger.Error("Reloaded configuration rejected", "error", err)
				return
			}
			a.Apply(ctx, next)
		})
		if err != nil {
			logger.Warn("Config hot reload disabled", "error", err)
		}
	}

	logger.Info("Starting shelf",
		"version", version,
		"addr", cfg.Server.Address(),
		"config", cli.Config,
		"widgets", a.Server().WidgetNames(),
	)

	if err := a.Run(ctx); err != nil {
		logger.Error("Shelf stopped with error", "error", err)
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cli, err := parseCLIConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	category, err := cmd.Flags().GetString("category")
	if err != nil {
		return fmt.Errorf("failed to get category flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.New(ctx, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	name := args[0]
	if name == config.WidgetTestimonials {
		return enc.Encode(a.Testimonials().Items())
	}

	w, ok := a.Widget(name)
	if !ok {
		return fmt.Errorf("unknown widget %q", name)
	}
	loadErr := w.Load(ctx)
	if err := enc.Encode(w.Render(category)); err != nil {
		return err
	}
	return loadErr
}
