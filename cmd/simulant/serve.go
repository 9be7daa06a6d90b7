package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/macnak/simulant/controlplane"
	"github.com/macnak/simulant/distributions"
	"github.com/macnak/simulant/engine"
)

var (
	serveConfigPath string
	serveAddr       string
	serveAPIAddr    string
	serveWatch      bool
	serveVerbose    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the data plane and control plane",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config/simulation.yaml", "configuration file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "data-plane listen address")
	serveCmd.Flags().StringVar(&serveAPIAddr, "api-addr", ":8081", "control-plane listen address")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "hot-reload when the config file changes")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "debug logging")
}

func runServe(cmd *cobra.Command, _ []string) error {
	level := zerolog.InfoLevel
	if serveVerbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	registry := engine.NewRegistry()
	store := controlplane.NewStore(registry, serveConfigPath, logger)
	if err := store.LoadFromDisk(); err != nil {
		logger.Warn().Err(err).Str("path", serveConfigPath).
			Msg("starting without a configuration")
	}

	metrics := engine.NewMetrics()
	pipeline := engine.NewPipeline(distributions.NewRand(), logger, metrics)
	dataHandler := engine.NewHandler(registry, pipeline, logger)

	dataPlane := engine.NewServer(engine.ServerConfig{
		Addr:   serveAddr,
		Logger: logger,
		Middleware: []engine.Middleware{
			engine.Recovery(logger),
			engine.RequestID(),
			engine.Tracing("simulant", nil),
		},
	}, dataHandler)

	controlPlane := controlplane.NewServer(controlplane.ServerConfig{
		Addr:    serveAPIAddr,
		Version: version,
		Logger:  logger,
		Metrics: metrics,
	}, store)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dataPlane.ListenAndServe(ctx) })
	g.Go(func() error { return controlPlane.ListenAndServe(ctx) })
	if serveWatch {
		watcher := controlplane.NewWatcher(store, logger)
		g.Go(func() error { return watcher.Run(ctx) })
	}

	logger.Info().
		Str("data_plane", serveAddr).
		Str("control_plane", serveAPIAddr).
		Msg("simulant ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
