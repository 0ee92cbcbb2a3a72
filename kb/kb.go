package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/scintillation-simulator/model"
	"github.com/signalsfoundry/scintillation-simulator/tle"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventSatelliteAdded EventType = iota
	EventObservationUpdated
)

func (t EventType) String() string {
	switch t {
	case EventSatelliteAdded:
		return "satellite_added"
	case EventObservationUpdated:
		return "observation_updated"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type      EventType
	Satellite Satellite
}

// Satellite is one tracked object: its element set plus the most recent
// look from the receiver.
type Satellite struct {
	Elements    tle.ElementSet
	Observation model.Observation
	InView      bool
	Observed    bool
}

// NoradID is the catalog number the entry is keyed by.
func (s Satellite) NoradID() int { return s.Elements.NoradID }

// Catalog is an in-memory, thread-safe store of satellites keyed by NORAD ID.
type Catalog struct {
	mu sync.RWMutex

	satellites map[int]*Satellite

	nextSub int
	subs    map[int]func(Event)
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		satellites: make(map[int]*Satellite),
		subs:       make(map[int]func(Event)),
	}
}

// AddSatellite registers an element set. It returns an error if the NORAD ID
// is already present.
func (c *Catalog) AddSatellite(set tle.ElementSet) error {
	c.mu.Lock()
	if _, exists := c.satellites[set.NoradID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("satellite %s already exists", set.Label())
	}
	sat := &Satellite{Elements: set}
	c.satellites[set.NoradID] = sat
	event := Event{Type: EventSatelliteAdded, Satellite: *sat}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, event)
	return nil
}

// Get returns a copy of the satellite with the given NORAD ID.
func (c *Catalog) Get(id int) (Satellite, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sat, ok := c.satellites[id]
	if !ok {
		return Satellite{}, false
	}
	return *sat, true
}

// List returns a snapshot of every satellite ordered by NORAD ID.
func (c *Catalog) List() []Satellite {
	c.mu.RLock()
	res := make([]Satellite, 0, len(c.satellites))
	for _, sat := range c.satellites {
		res = append(res, *sat)
	}
	c.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].NoradID() < res[j].NoradID() })
	return res
}

// InView returns the satellites whose latest observation was above the
// elevation mask, ordered by NORAD ID.
func (c *Catalog) InView() []Satellite {
	all := c.List()
	res := all[:0]
	for _, sat := range all {
		if sat.InView {
			res = append(res, sat)
		}
	}
	return res
}

// Len reports the number of satellites.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.satellites)
}

// UpdateObservation records the latest look at a satellite and notifies
// subscribers.
func (c *Catalog) UpdateObservation(id int, obs model.Observation, inView bool) error {
	c.mu.Lock()
	sat, ok := c.satellites[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("satellite %05d not found", id)
	}
	sat.Observation = obs
	sat.InView = inView
	sat.Observed = true
	event := Event{Type: EventObservationUpdated, Satellite: *sat}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	// Subscribers run outside the lock so they may call back into the catalog.
	notify(subs, event)
	return nil
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function that is safe to call more than once.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Catalog) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	return subs
}

func notify(subs []func(Event), event Event) {
	for _, sub := range subs {
		sub(event)
	}
}
