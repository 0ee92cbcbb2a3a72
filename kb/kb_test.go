package kb

import (
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/scintillation-simulator/internal/fixtures"
	"github.com/signalsfoundry/scintillation-simulator/model"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

func loadSets(t *testing.T) []tle.ElementSet {
	t.Helper()
	sets, err := tle.Parse(fixtures.CelestrakGNSS)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return sets
}

func TestAddAndGetSatellite(t *testing.T) {
	store := NewCatalog()
	sets := loadSets(t)
	if err := store.AddSatellite(sets[0]); err != nil {
		t.Fatalf("AddSatellite error: %v", err)
	}
	got, ok := store.Get(24876)
	if !ok || got.Elements.Name != "GPS BIIR-2  (PRN 13)" {
		t.Fatalf("Get returned %#v, %v; want GPS BIIR-2", got, ok)
	}
	if got.Observed || got.InView {
		t.Fatalf("new satellite should not be observed yet: %#v", got)
	}
	if _, ok := store.Get(1); ok {
		t.Fatalf("Get(1) found a satellite that was never added")
	}
}

func TestAddSatelliteDuplicate(t *testing.T) {
	store := NewCatalog()
	sets := loadSets(t)
	if err := store.AddSatellite(sets[0]); err != nil {
		t.Fatalf("first AddSatellite error: %v", err)
	}
	if err := store.AddSatellite(sets[0]); err == nil {
		t.Fatalf("expected duplicate AddSatellite to fail")
	}
	if store.Len() != 1 {
		t.Fatalf("Len=%d after duplicate, want 1", store.Len())
	}
}

func TestListSortedByNoradID(t *testing.T) {
	store := NewCatalog()
	sets := loadSets(t)
	for i := len(sets) - 1; i >= 0; i-- {
		if err := store.AddSatellite(sets[i]); err != nil {
			t.Fatalf("AddSatellite error: %v", err)
		}
	}

	list := store.List()
	if len(list) != len(sets) {
		t.Fatalf("List len=%d, want %d", len(list), len(sets))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].NoradID() >= list[i].NoradID() {
			t.Fatalf("List not sorted at %d: %d >= %d", i, list[i-1].NoradID(), list[i].NoradID())
		}
	}
}

func TestUpdateObservationAndSubscribe(t *testing.T) {
	store := NewCatalog()
	sets := loadSets(t)
	for _, s := range sets[:2] {
		if err := store.AddSatellite(s); err != nil {
			t.Fatalf("AddSatellite error: %v", err)
		}
	}

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) {
		got = append(got, e)
		// Re-entrant reads must not deadlock.
		_ = store.Len()
	})

	obs := model.Observation{
		Time:         time.Date(2024, time.November, 25, 12, 0, 0, 0, time.UTC),
		ElevationDeg: 42,
		AzimuthRad:   1.5,
		RangeKm:      21000,
	}
	if err := store.UpdateObservation(26360, obs, true); err != nil {
		t.Fatalf("UpdateObservation error: %v", err)
	}
	if len(got) != 1 || got[0].Type != EventObservationUpdated {
		t.Fatalf("events = %#v, want one EventObservationUpdated", got)
	}
	if got[0].Satellite.Observation != obs || !got[0].Satellite.InView {
		t.Fatalf("event satellite = %#v, want observation %#v in view", got[0].Satellite, obs)
	}

	inView := store.InView()
	if len(inView) != 1 || inView[0].NoradID() != 26360 {
		t.Fatalf("InView = %#v, want only 26360", inView)
	}

	unsubscribe()
	unsubscribe()
	if err := store.UpdateObservation(26360, obs, false); err != nil {
		t.Fatalf("UpdateObservation error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("received %d events after unsubscribe, want 1", len(got))
	}
	if err := store.UpdateObservation(1, obs, false); err == nil {
		t.Fatalf("expected error for unknown satellite")
	}
}

func TestUnsubscribeKeepsOtherSubscribers(t *testing.T) {
	store := NewCatalog()
	var first, second int
	unsubFirst := store.Subscribe(func(Event) { first++ })
	store.Subscribe(func(Event) { second++ })
	unsubFirst()

	if err := store.AddSatellite(loadSets(t)[0]); err != nil {
		t.Fatalf("AddSatellite error: %v", err)
	}
	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d, want 0 and 1", first, second)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewCatalog()
	sets := loadSets(t)
	if err := store.AddSatellite(sets[0]); err != nil {
		t.Fatalf("AddSatellite error: %v", err)
	}

	var wg sync.WaitGroup
	// Concurrent readers/writers
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Get(24876)
			_ = store.List()
		}()
		go func() {
			defer wg.Done()
			_ = store.UpdateObservation(24876, model.Observation{ElevationDeg: float64(i)}, i%2 == 0)
		}()
	}
	wg.Wait()
}
