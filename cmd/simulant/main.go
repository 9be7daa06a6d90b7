package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set by build flags

var rootCmd = &cobra.Command{
	Use:   "simulant",
	Short: "Configurable HTTP endpoint simulator",
	Long: `Simulant serves user-declared HTTP endpoints with shaped latency
distributions, injected errors, rate limiting, bandwidth throttling, and
time-varying behavior windows. It stands in for real upstream services in
load tests, chaos experiments, and integration tests.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
