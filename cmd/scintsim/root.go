package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/scintillation-simulator/internal/cache"
	"github.com/signalsfoundry/scintillation-simulator/internal/catalog"
	"github.com/signalsfoundry/scintillation-simulator/internal/celestrak"
	"github.com/signalsfoundry/scintillation-simulator/internal/config"
	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/internal/observability"
	"github.com/signalsfoundry/scintillation-simulator/internal/spacetrack"
	"github.com/signalsfoundry/scintillation-simulator/internal/upstream"
)

// app carries what every command needs once flags are resolved.
type app struct {
	now func() time.Time

	cfg      config.Config
	log      logging.Logger
	logFiles io.Closer
	registry *prometheus.Registry
	metrics  *observability.Collector
	shutdown func(context.Context) error

	closed bool
}

func newRootCmd(now func() time.Time) *cobra.Command {
	return (&app{now: now}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scintsim",
		Short: "Satellite geometry front-end of the scintillation simulator",
		Long: `scintsim acquires the element sets of a satellite system, finds the
satellites in line of sight of a ground receiver at a reference time and
samples their pass geometry (range, range rate, elevation, azimuth).

Element sets come from CelesTrak and Space-Track with --online, or from the
responses cached in --data-dir otherwise.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}
	config.BindPersistentFlags(root.PersistentFlags())

	root.AddCommand(
		newIDsCmd(a),
		newTLEsCmd(a),
		newLOSCmd(a),
		newTrackCmd(a),
		newConfigCmd(a),
	)
	// cobra skips post-run hooks when RunE fails, so teardown also runs
	// from each command.
	for _, cmd := range root.Commands() {
		if cmd.RunE == nil {
			continue
		}
		runE := cmd.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				err = errors.Join(err, a.teardown(cmd.Context()))
			}()
			return runE(cmd, args)
		}
	}
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags(), a.now())
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, files, err := logging.Open(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
		Dir:    cfg.LogDir,
	})
	if err != nil {
		return err
	}
	ctx, log := logging.WithRequestLogger(cmd.Context(), log, "run_id")
	ctx = logging.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)
	a.log = log.With(logging.String("command", cmd.Name()))
	a.logFiles = files

	a.registry = prometheus.NewRegistry()
	if a.metrics, err = observability.NewCollector(a.registry); err != nil {
		return errors.Join(err, a.teardown(ctx))
	}

	a.shutdown, err = observability.InitTracing(ctx, a.tracingConfig(ctx, cmd), a.log)
	if err != nil {
		return errors.Join(err, a.teardown(ctx))
	}

	a.log.Debug(ctx, "configuration resolved",
		logging.String("system", cfg.System),
		logging.Time("reference_time", cfg.ReferenceTime),
		logging.String("receiver", cfg.Receiver().String()),
		logging.Any("online", cfg.Online),
	)
	return nil
}

// teardown flushes traces and closes the log files. Only the first call
// does anything.
func (a *app) teardown(ctx context.Context) error {
	if a.closed {
		return nil
	}
	a.closed = true
	if ctx == nil {
		ctx = context.Background()
	}
	observability.ShutdownWithTimeout(ctx, a.shutdown, a.log)
	if a.logFiles != nil {
		return a.logFiles.Close()
	}
	return nil
}

// tracingConfig reads the tracing environment and tags spans with the run.
func (a *app) tracingConfig(ctx context.Context, cmd *cobra.Command) observability.TracingConfig {
	cfg := observability.TracingConfigFromEnv()
	cfg.Output = cmd.ErrOrStderr()
	cfg.Run = observability.RunAttributes(
		logging.RequestIDFromContext(ctx),
		a.cfg.SatelliteSystem(),
		a.cfg.Receiver(),
		a.cfg.ReferenceTime,
	)
	return cfg
}

// source builds the acquisition pipeline for the resolved configuration.
func (a *app) source() *catalog.Source {
	httpCfg := upstream.Config{Timeout: a.cfg.HTTPTimeout}
	var (
		ct *celestrak.Client
		st *spacetrack.Client
	)
	if a.cfg.Online {
		ct = celestrak.New(httpCfg, a.log, a.metrics)
		st = spacetrack.New(httpCfg, spacetrack.Credentials{
			Identity: a.cfg.Identity,
			Password: a.cfg.Password,
		}, a.log, a.metrics)
	}
	store := cache.New(nil, a.cfg.DataDir, a.metrics)

	opts := catalog.Options{
		Online:         a.cfg.Online,
		CacheResponses: a.cfg.CacheResponses,
		System:         a.cfg.SatelliteSystem(),
	}
	if ct == nil {
		return catalog.NewSource(opts, nil, nil, store, a.log)
	}
	return catalog.NewSource(opts, ct, st, store, a.log)
}
