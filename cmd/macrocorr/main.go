package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "MacroCorr"
	version = "v1.2.0"
)

var logLevel string

// rootCmd is the base command for the MacroCorr CLI.
var rootCmd = &cobra.Command{
	Use:   "macrocorr",
	Short: "MacroCorr economic correlation matrix pipeline",
	Long: `MacroCorr pulls economic and market time series from public providers
(FRED, Stooq, Yahoo Finance), aligns them on a monthly grid, and emits
static and rolling Pearson correlation matrices as flat CSV/JSON artifacts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s - economic correlation matrix pipeline\n", appName, version)
		fmt.Println("Use 'macrocorr run' to execute the full pipeline")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	// Pretty console output on a terminal, structured JSON otherwise.
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		})
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
