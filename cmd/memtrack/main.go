// Package main provides the entry point for the memtrack host command.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/memtrack/cmd/memtrack/config"
	"github.com/TFMV/memtrack/pkg/memtrack"
	"github.com/TFMV/memtrack/pkg/metrics"
	"github.com/TFMV/memtrack/pkg/workload"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "memtrack",
	Short: "Allocation profiling harness",
	Long: `memtrack installs a profiling allocator as the process-wide Arrow
allocator, drives a configurable allocation workload through it, and
reports the resulting counters via structured logs and Prometheus.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the allocation workload under the profiler",
	Long: `Run the allocation workload with the profiling allocator installed.

Example:
  memtrack run --profile --goroutines 8 --batches 1000
  MEMTRACK_PROFILE=1 memtrack run --metrics-address :9090`,
	RunE: runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Command flags
	runCmd.Flags().StringP("config", "c", "", "config file path")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().Bool("profile", false, "force the profiling gate on")
	runCmd.Flags().Bool("metrics", true, "enable Prometheus metrics")
	runCmd.Flags().String("metrics-address", ":9090", "metrics server address")
	runCmd.Flags().String("metrics-path", "/metrics", "metrics endpoint path")
	runCmd.Flags().Int("goroutines", 4, "concurrent workload goroutines")
	runCmd.Flags().Int("batches", 100, "record batches per goroutine")
	runCmd.Flags().Int("rows", 1024, "rows per record batch")
	runCmd.Flags().Duration("pause", 0, "pause between batches")

	// Bind flags to viper
	if err := viper.BindPFlags(runCmd.Flags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("MEMTRACK")
	viper.AutomaticEnv()

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memtrack\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	// The profiler must own the default allocator before anything else
	// allocates through it, so install and read the gate toggle before
	// any command runs.
	memtrack.Install()
	memtrack.InitFromEnv()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWorkload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("Starting memtrack")

	// The environment toggle was applied in main; --profile only forces
	// the gate on, it never turns an enabled profiler off.
	if cfg.Profile {
		memtrack.Enable(true)
	}
	logger.Info().Bool("profiling", memtrack.IsEnabled()).Msg("Profiling gate")

	// Metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		registry := prometheusRegistry()
		metricsServer = metrics.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, registry)
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("Starting metrics server")
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Failed to start metrics server")
			}
		}()
	}

	// Cancel the workload on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workloadCfg := workload.Config{
		Goroutines: cfg.Workload.Goroutines,
		Batches:    cfg.Workload.Batches,
		Rows:       cfg.Workload.Rows,
		Pause:      cfg.Workload.Pause,
	}
	if err := workload.Run(ctx, memtrack.Default, workloadCfg, logger); err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("Workload interrupted")
		} else {
			return fmt.Errorf("workload failed: %w", err)
		}
	}

	logSnapshot(logger, memtrack.GetSnapshot())

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	return nil
}

// prometheusRegistry builds a registry carrying the allocation exporter.
func prometheusRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewExporter(memtrack.GetSnapshot))
	return registry
}

func logSnapshot(logger zerolog.Logger, snap memtrack.Snapshot) {
	logger.Info().
		Int64("live_bytes", snap.LiveBytes).
		Int64("peak_live_bytes", snap.PeakLiveBytes).
		Uint64("total_alloc_bytes", snap.TotalAllocBytes).
		Uint64("total_dealloc_bytes", snap.TotalDeallocBytes).
		Uint64("alloc_calls", snap.AllocCalls).
		Uint64("dealloc_calls", snap.DeallocCalls).
		Uint64("realloc_calls", snap.ReallocCalls).
		Int64("net_bytes", snap.NetBytes).
		Msg("Final allocation snapshot")
}

func loadConfig() (*config.Config, error) {
	// Load config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &config.Config{
		LogLevel: viper.GetString("log-level"),
		Profile:  viper.GetBool("profile"),
		Metrics: config.MetricsConfig{
			Enabled: viper.GetBool("metrics"),
			Address: viper.GetString("metrics-address"),
			Path:    viper.GetString("metrics-path"),
		},
		Workload: config.WorkloadConfig{
			Goroutines: viper.GetInt("goroutines"),
			Batches:    viper.GetInt("batches"),
			Rows:       viper.GetInt("rows"),
			Pause:      viper.GetDuration("pause"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "memtrack").
		Logger()
}
