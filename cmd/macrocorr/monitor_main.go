package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpapi "github.com/sawpanic/macrocorr/internal/interfaces/http"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Serve health, metrics, and progress endpoints",
	Long: `Serve the monitoring endpoints standalone: /health, /metrics
(Prometheus), /status (JSON snapshot), and /ws (progress feed). Useful
for scraping a host that runs the pipeline on a schedule.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", ":8080", "Listen address")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpapi.InitializeMetrics()
	return httpapi.NewServer(monitorAddr, version).Start(ctx)
}
