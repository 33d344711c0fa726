package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/macrocorr/internal/application"
	"github.com/sawpanic/macrocorr/internal/data"
	"github.com/sawpanic/macrocorr/internal/data/cache"
	"github.com/sawpanic/macrocorr/internal/infrastructure/db"
	httpapi "github.com/sawpanic/macrocorr/internal/interfaces/http"
	"github.com/sawpanic/macrocorr/internal/interfaces/output"
	"github.com/sawpanic/macrocorr/internal/providers"
)

var (
	runSeriesPath  string
	runVizPath     string
	runRoot        string
	runMode        string
	runSkipFetch   bool
	runMonitorAddr string
	runRedisAddr   string
	runPostgresDSN string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch data and emit correlation artifacts",
	Long: `Run the full pipeline: fetch raw series (unless --skip-fetch), resample
to monthly, transform, merge, correlate, and write heatmap, rolling, and
panel artifacts under the data root.

Example usage:
  macrocorr run                            # full run with defaults
  macrocorr run --mode=levels              # level panel instead of returns
  macrocorr run --skip-fetch               # reuse persisted raw data
  macrocorr run --monitor=:8080            # expose progress and metrics`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addConfigFlags(runCmd.Flags())
	runCmd.Flags().StringVar(&runMode, "mode", "", "Override pipeline mode: levels or returns")
	runCmd.Flags().BoolVar(&runSkipFetch, "skip-fetch", false, "Skip fetching, use persisted raw data")
	runCmd.Flags().StringVar(&runMonitorAddr, "monitor", "", "Serve progress/metrics on this address (empty disables)")
	runCmd.Flags().StringVar(&runRedisAddr, "redis", "", "Redis address for the observation cache (empty disables)")
	runCmd.Flags().StringVar(&runPostgresDSN, "pg-dsn", "", "PostgreSQL DSN for run persistence (empty disables)")
}

// addConfigFlags registers the flags shared by run and fetch.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVar(&runSeriesPath, "series", "config/series.yaml", "Path to series configuration")
	fs.StringVar(&runVizPath, "viz", "config/viz.yaml", "Path to visualization configuration")
	fs.StringVar(&runRoot, "root", ".", "Data root for raw, processed, and report artifacts")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seriesCfg, err := application.LoadSeriesConfig(runSeriesPath)
	if err != nil {
		return err
	}
	vizCfg, err := application.LoadVizConfig(runVizPath)
	if err != nil {
		return err
	}
	if runMode != "" {
		vizCfg.Mode = runMode
	}

	httpapi.InitializeMetrics()
	paths := application.DefaultPaths(runRoot)
	emitter := output.NewEmitter()

	pipeline := &application.Pipeline{
		Series:    seriesCfg,
		Viz:       vizCfg,
		Paths:     paths,
		Store:     data.NewRawStore(paths.RawDir),
		Heatmap:   emitter,
		Animation: emitter,
		Panels:    emitter,
		Metrics:   httpapi.GetMetrics(),
	}

	if !runSkipFetch {
		pipeline.Fetcher = buildRegistry(seriesCfg)
	}

	dbCfg := db.DefaultConfig()
	if runPostgresDSN != "" {
		dbCfg.Enabled = true
		dbCfg.DSN = runPostgresDSN
	}
	manager, err := db.NewManager(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to set up persistence: %w", err)
	}
	defer manager.Close()
	if manager.Enabled() {
		pipeline.Repos = manager.Repos()
	}

	if runMonitorAddr != "" {
		server := httpapi.NewServer(runMonitorAddr, version)
		pipeline.Progress = server.Hub()
		go func() {
			if err := server.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("Monitor server stopped")
			}
		}()
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s complete: %d series, %d monthly rows, %d rolling frames\n",
		result.RunID, len(result.Static.Labels), result.Panel.Rows(), len(result.Rolling))
	return nil
}

// buildRegistry wires the provider registry with its shared rate-limited
// client and optional redis observation cache.
func buildRegistry(seriesCfg *application.SeriesConfig) *providers.Registry {
	client := providers.NewClient()
	registry := providers.NewRegistry(seriesCfg.Fallbacks,
		providers.NewFREDSource(client),
		providers.NewStooqSource(client),
		providers.NewYahooSource(client),
	)
	if runRedisAddr != "" {
		obsCache, err := cache.New(runRedisAddr, "", 0, 12*time.Hour)
		if err != nil {
			log.Warn().Err(err).Msg("Observation cache unavailable, fetching direct")
		} else {
			registry = registry.WithCache(obsCache)
		}
	}
	return registry
}
