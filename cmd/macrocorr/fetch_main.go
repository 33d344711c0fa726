package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/macrocorr/internal/application"
	"github.com/sawpanic/macrocorr/internal/data"
)

var fetchOnly []string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and persist raw series without running the pipeline",
	Long: `Fetch every configured series (or a subset via --only) through the
provider fallback chains and persist dated raw CSVs under the data root.

Example usage:
  macrocorr fetch                      # refresh all configured series
  macrocorr fetch --only=cpi_yoy,spx   # refresh a subset`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addConfigFlags(fetchCmd.Flags())
	fetchCmd.Flags().StringSliceVar(&fetchOnly, "only", nil, "Series names to fetch (default all)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seriesCfg, err := application.LoadSeriesConfig(runSeriesPath)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(seriesCfg.Series))
	if len(fetchOnly) > 0 {
		for _, name := range fetchOnly {
			if _, ok := seriesCfg.Series[name]; !ok {
				return fmt.Errorf("unknown series %q", name)
			}
			names = append(names, name)
		}
	} else {
		for name := range seriesCfg.Series {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	paths := application.DefaultPaths(runRoot)
	store := data.NewRawStore(paths.RawDir)
	registry := buildRegistry(seriesCfg)

	failed := 0
	for _, name := range names {
		meta := seriesCfg.Series[name]
		obs, err := registry.Fetch(ctx, meta.Source, meta.ID)
		if err != nil {
			log.Warn().Str("series", name).Err(err).Msg("Fetch failed")
			failed++
			continue
		}
		path, err := store.SaveRaw(name, obs)
		if err != nil {
			log.Warn().Str("series", name).Err(err).Msg("Failed to persist raw data")
			failed++
			continue
		}
		fmt.Printf("%-20s %6d rows  %s\n", name, len(obs), path)
	}

	if failed == len(names) {
		return fmt.Errorf("all %d fetches failed", failed)
	}
	if failed > 0 {
		fmt.Printf("%d of %d series failed; persisted data for the rest\n", failed, len(names))
	}
	return nil
}
