package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/scintillation-simulator/core"
	"github.com/signalsfoundry/scintillation-simulator/internal/config"
	"github.com/signalsfoundry/scintillation-simulator/internal/export"
	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/kb"
	"github.com/signalsfoundry/scintillation-simulator/model"
	"github.com/signalsfoundry/scintillation-simulator/timectrl"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

func newIDsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "Print the NORAD catalog IDs of the satellite system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := a.source().NoradIDs(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tle.JoinIDs(ids))
			return err
		},
	}
}

func newTLEsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tles",
		Short: "Print one element set per satellite, closest to the reference time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sets, err := a.source().Load(cmd.Context(), a.cfg.ReferenceTime, nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tle.Format(sets))
			return err
		},
	}
}

func newLOSCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "los",
		Short: "Find the satellites in line of sight and export their pass geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			props, passes, err := a.findLOS(ctx, kb.NewCatalog())
			if err != nil {
				return err
			}
			scenarios, err := core.BuildScenarios(ctx, passes, props, a.cfg.Receiver(), a.cfg.SampleTime)
			if err != nil {
				return err
			}
			samples := 0
			for _, sc := range scenarios {
				samples += len(sc.Samples)
			}
			a.metrics.AddScenarioSamples(samples)
			a.log.Info(ctx, "scenarios built",
				logging.Int("scenarios", len(scenarios)),
				logging.Int("samples", samples),
			)

			format := export.Format(a.cfg.Format)
			if a.cfg.Output == "" || a.cfg.Output == "-" {
				return export.Write(cmd.OutOrStdout(), format, scenarios)
			}
			return export.WriteFile(a.cfg.Output, format, scenarios)
		},
	}
	config.BindOutputFlags(cmd.Flags())
	return cmd
}

// findLOS loads the element sets into store and searches the passes that
// contain the reference time.
func (a *app) findLOS(ctx context.Context, store *kb.Catalog) ([]*core.Propagator, []core.Pass, error) {
	sets, err := a.source().Load(ctx, a.cfg.ReferenceTime, store)
	if err != nil {
		return nil, nil, err
	}
	props, err := core.NewPropagators(sets)
	if err != nil {
		return nil, nil, err
	}
	passes, err := core.FindLOSSatellites(ctx, props, a.cfg.Receiver(), a.cfg.ReferenceTime, core.LOSOptions{
		MinElevationDeg: a.cfg.MinElevation,
		SearchWindow:    a.cfg.SearchWindow,
		Step:            a.cfg.EventStep,
		Workers:         a.cfg.Workers,
		Logger:          a.log,
		Metrics:         a.metrics,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, p := range passes {
		a.log.Info(ctx, "satellite in line of sight",
			logging.String("satellite", p.Satellite),
			logging.Time("rise", p.Rise.Time),
			logging.Time("culminate", p.Culminate.Time),
			logging.Float("max_elevation_deg", p.Culminate.ElevationDeg),
			logging.Time("set", p.Set.Time),
		)
	}
	a.log.Info(ctx, "line of sight search done",
		logging.Int("satellites", len(props)),
		logging.Int("in_view", len(passes)),
	)
	return props, passes, nil
}

func newTrackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Follow the satellites in line of sight as simulation time advances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.track(cmd.Context())
		},
	}
	config.BindTrackFlags(cmd.Flags())
	return cmd
}

func (a *app) track(ctx context.Context) error {
	mode, err := timectrl.ParseMode(a.cfg.Mode)
	if err != nil {
		return err
	}

	store := kb.NewCatalog()
	props, passes, err := a.findLOS(ctx, store)
	if err != nil {
		return err
	}

	tracker := core.NewTracker(a.cfg.Receiver(), a.cfg.MinElevation,
		core.WithObservationUpdater(store),
		core.WithTrackerLogger(a.log),
		core.WithTrackerMetrics(a.metrics),
	)
	inLOS := make(map[int]bool, len(passes))
	for _, p := range passes {
		inLOS[p.NoradID] = true
	}
	for _, p := range props {
		if len(passes) > 0 && !inLOS[p.NoradID()] {
			continue
		}
		if err := tracker.Add(p); err != nil {
			return err
		}
	}
	if len(passes) == 0 {
		a.log.Warn(ctx, "no satellite in line of sight at the reference time; tracking all")
	}

	prevInView := make(map[int]bool)
	unsubscribe := store.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventObservationUpdated {
			return
		}
		id := e.Satellite.NoradID()
		if was, seen := prevInView[id]; seen && was != e.Satellite.InView {
			kind := model.EventSet
			if e.Satellite.InView {
				kind = model.EventRise
			}
			a.log.Info(ctx, "visibility changed",
				logging.String("satellite", e.Satellite.Elements.Label()),
				logging.String("event", kind.String()),
				logging.Time("time", e.Satellite.Observation.Time),
			)
		}
		prevInView[id] = e.Satellite.InView
	})
	defer unsubscribe()

	if a.cfg.MetricsAddr != "" {
		srv := serveMetrics(a.cfg.MetricsAddr, a, a.log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var trackErr error
	tc := timectrl.NewTimeController(a.cfg.ReferenceTime, a.cfg.Tick, mode)
	tc.AddListener(func(simTime time.Time) {
		inView, err := tracker.Update(runCtx, simTime)
		if err != nil {
			trackErr = err
			cancel()
			return
		}
		a.metrics.SetLOSSatellites(inView)
		a.log.Trace(runCtx, "tick",
			logging.Time("sim_time", simTime),
			logging.Int("in_view", inView),
		)
	})

	a.log.Info(ctx, "tracking started",
		logging.Int("satellites", tracker.Len()),
		logging.String("mode", mode.String()),
		logging.Duration("tick", a.cfg.Tick),
		logging.Duration("duration", a.cfg.Duration),
	)
	err = tc.Run(runCtx, a.cfg.Duration)
	if trackErr != nil {
		return trackErr
	}
	if err != nil && ctx.Err() != nil {
		// Interrupted by the user.
		a.log.Info(ctx, "tracking stopped", logging.Time("sim_time", tc.Now()))
		return nil
	}
	if err != nil {
		return err
	}
	a.log.Info(ctx, "tracking finished",
		logging.Time("sim_time", tc.Now()),
		logging.Int("in_view", len(store.InView())),
	)
	return nil
}

func serveMetrics(addr string, a *app, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(a.cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	config.BindOutputFlags(cmd.Flags())
	config.BindTrackFlags(cmd.Flags())
	return cmd
}
