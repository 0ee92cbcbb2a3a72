// Package catalog acquires the element sets of a satellite system, either
// from the upstream providers or from the response cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/scintillation-simulator/internal/cache"
	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/kb"
	"github.com/signalsfoundry/scintillation-simulator/model"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

// GroupFetcher lists the current members of a satellite system.
// *celestrak.Client satisfies it.
type GroupFetcher interface {
	FetchGroup(ctx context.Context, system model.SatelliteSystem) (string, error)
}

// HistoryFetcher returns the element sets published around a reference
// time. *spacetrack.Client satisfies it.
type HistoryFetcher interface {
	FetchTLEs(ctx context.Context, ids []string, reference time.Time) (string, error)
}

// ErrNoSatellites is returned when a response holds no catalog numbers.
var ErrNoSatellites = errors.New("no satellites found")

// Options selects where element sets come from.
type Options struct {
	Online         bool
	CacheResponses bool
	System         model.SatelliteSystem
}

// Source runs the acquisition pipeline for one satellite system.
type Source struct {
	opts       Options
	celestrak  GroupFetcher
	spacetrack HistoryFetcher
	cache      *cache.Store
	log        logging.Logger
}

// NewSource wires the fetchers and the cache. The fetchers may be nil when
// opts.Online is false.
func NewSource(opts Options, celestrak GroupFetcher, spacetrack HistoryFetcher, store *cache.Store, log logging.Logger) *Source {
	if opts.System == "" {
		opts.System = model.SystemGNSS
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Source{
		opts:       opts,
		celestrak:  celestrak,
		spacetrack: spacetrack,
		cache:      store,
		log:        log.With(logging.String("system", opts.System.String())),
	}
}

// NoradIDs returns the catalog numbers of the system, in provider order.
func (s *Source) NoradIDs(ctx context.Context) ([]string, error) {
	text, err := s.fetch(ctx, cache.KindCelestrak, func() (string, error) {
		if s.celestrak == nil {
			return "", errors.New("celestrak client is not configured")
		}
		return s.celestrak.FetchGroup(ctx, s.opts.System)
	})
	if err != nil {
		return nil, err
	}

	ids := tle.ExtractNoradIDs(text)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s group: %w", s.opts.System, ErrNoSatellites)
	}
	s.log.Info(ctx, "resolved NORAD catalog IDs", logging.Int("count", len(ids)))
	return ids, nil
}

// ElementSets returns one element set per satellite in ids, the one whose
// epoch is closest to reference.
func (s *Source) ElementSets(ctx context.Context, ids []string, reference time.Time) ([]tle.ElementSet, error) {
	text, err := s.fetch(ctx, cache.KindSpaceTrack, func() (string, error) {
		if s.spacetrack == nil {
			return "", errors.New("space-track client is not configured")
		}
		return s.spacetrack.FetchTLEs(ctx, ids, reference)
	})
	if err != nil {
		return nil, err
	}

	sets, err := tle.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse element sets: %w", err)
	}
	deduped := tle.Deduplicate(sets, reference)
	s.log.Info(ctx, "loaded element sets",
		logging.Int("received", len(sets)),
		logging.Int("satellites", len(deduped)),
	)
	if len(deduped) == 0 {
		return nil, fmt.Errorf("element sets for %s: %w", s.opts.System, ErrNoSatellites)
	}
	return deduped, nil
}

// Load resolves the system members and their element sets, then registers
// every set in store.
func (s *Source) Load(ctx context.Context, reference time.Time, store *kb.Catalog) ([]tle.ElementSet, error) {
	ids, err := s.NoradIDs(ctx)
	if err != nil {
		return nil, err
	}
	sets, err := s.ElementSets(ctx, ids, reference)
	if err != nil {
		return nil, err
	}
	if store != nil {
		for _, set := range sets {
			if err := store.AddSatellite(set); err != nil {
				return nil, err
			}
		}
	}
	return sets, nil
}

func (s *Source) fetch(ctx context.Context, kind cache.Kind, online func() (string, error)) (string, error) {
	if !s.opts.Online {
		if s.cache == nil {
			return "", fmt.Errorf("offline mode needs a response cache")
		}
		text, err := s.cache.Load(kind, s.opts.System)
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", fmt.Errorf("%w; run once with --online --cache-responses", err)
		}
		if err != nil {
			return "", err
		}
		s.log.Debug(ctx, "using cached response", logging.String("kind", string(kind)))
		return text, nil
	}

	text, err := online()
	if err != nil {
		return "", err
	}
	if s.opts.CacheResponses && s.cache != nil {
		if err := s.cache.Save(kind, s.opts.System, text); err != nil {
			return "", err
		}
		s.log.Debug(ctx, "cached response",
			logging.String("kind", string(kind)),
			logging.String("path", s.cache.Path(kind, s.opts.System)),
		)
	}
	return text, nil
}
