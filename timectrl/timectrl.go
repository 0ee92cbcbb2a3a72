package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one Tick per Tick of wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners allow, still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "realtime" or "accelerated".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "realtime", "real-time", "":
		return RealTime, nil
	case "accelerated":
		return Accelerated, nil
	default:
		return 0, fmt.Errorf("unknown time mode %q", s)
	}
}

// Option configures a TimeController.
type Option func(*TimeController)

// WithClock replaces the wall clock used in RealTime mode.
func WithClock(c clockwork.Clock) Option {
	return func(tc *TimeController) { tc.clock = c }
}

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	clock       clockwork.Clock
	currentTime time.Time
	listeners   []func(time.Time)
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode, opts ...Option) *TimeController {
	tc := &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		clock:       clockwork.NewRealClock(),
		currentTime: start,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps simulation time to t without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked with the new time on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run advances simulation time from Now in steps of Tick until duration of
// simulation time has elapsed, or forever when duration is zero. It returns
// ctx.Err() if the context ends first.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	if tc.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", tc.Tick)
	}

	var ticks <-chan time.Time
	if tc.Mode == RealTime {
		ticker := tc.clock.NewTicker(tc.Tick)
		defer ticker.Stop()
		ticks = ticker.Chan()
	}

	simTime := tc.Now()
	var elapsed time.Duration
	for duration <= 0 || elapsed < duration {
		if ticks != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticks:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		simTime = simTime.Add(tc.Tick)
		elapsed += tc.Tick

		tc.mu.Lock()
		tc.currentTime = simTime
		listeners := append([]func(time.Time){}, tc.listeners...)
		tc.mu.Unlock()

		for _, fn := range listeners {
			fn(simTime)
		}
	}
	return nil
}
