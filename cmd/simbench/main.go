// simbench drives paced load at a running simulator and reports latency
// percentiles and status counts.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/macnak/simulant/loadgen"
)

var (
	benchMethod  string
	benchBody    string
	benchRate    float64
	benchWorkers int
	benchTotal   int
	benchRetries int
	benchBreaker bool
	benchTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "simbench <url>",
	Short: "Load generator for the simulator data plane",
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func init() {
	rootCmd.Flags().StringVarP(&benchMethod, "method", "X", "GET", "HTTP method")
	rootCmd.Flags().StringVarP(&benchBody, "body", "d", "", "request body")
	rootCmd.Flags().Float64Var(&benchRate, "rate", 0, "target requests per second (0 = unpaced)")
	rootCmd.Flags().IntVarP(&benchWorkers, "workers", "w", 8, "concurrent workers")
	rootCmd.Flags().IntVarP(&benchTotal, "requests", "n", 100, "total requests")
	rootCmd.Flags().IntVar(&benchRetries, "retries", 0, "retries per request on 5xx or transport error")
	rootCmd.Flags().BoolVar(&benchBreaker, "breaker", false, "fail fast through a circuit breaker")
	rootCmd.Flags().DurationVar(&benchTimeout, "timeout", 0, "per-request timeout, retries included (0 = none)")
}

func runBench(cmd *cobra.Command, args []string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	client := loadgen.NewClient(loadgen.ClientConfig{
		Timeout:    benchTimeout,
		MaxRetries: benchRetries,
		Breaker:    benchBreaker,
	})
	runner := loadgen.NewRunner(client, logger)

	report, err := runner.Run(cmd.Context(), loadgen.RunConfig{
		URL:     args[0],
		Method:  benchMethod,
		Body:    benchBody,
		Rate:    benchRate,
		Workers: benchWorkers,
		Total:   benchTotal,
	})
	if err != nil {
		return err
	}

	fmt.Printf("requests: %d  errors: %d  elapsed: %s\n",
		report.Total, report.Errors, report.Elapsed.Round(time.Millisecond))
	fmt.Printf("latency p50: %s  p95: %s  p99: %s\n",
		report.P50.Round(time.Microsecond),
		report.P95.Round(time.Microsecond),
		report.P99.Round(time.Microsecond))
	for status, count := range report.StatusCounts {
		fmt.Printf("status %d: %d\n", status, count)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
