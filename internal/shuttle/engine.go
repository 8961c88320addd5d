// Package shuttle advances a 20m shuttle run through the protocol table.
//
// Engine is the state machine: it only knows levels, shuttles and distance.
// Driver owns time: it runs the countdown, plays cues, waits out each
// repetition and calls Engine.Tick.
package shuttle

import (
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/protocol"
)

// Status is the engine's lifecycle state.
type Status int

const (
	StatusIdle     Status = iota // never started
	StatusRunning                // Start called, repetitions advancing
	StatusStopped                // cancelled by Stop
	StatusFinished               // every level of the protocol completed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// State is a copy of the engine's test state.
type State struct {
	Level             int     `json:"level"`
	Shuttle           int     `json:"shuttle"`
	DistanceMeters    float64 `json:"distance_m"`
	SpeedKmh          float64 `json:"speed_kmh"`
	Running           bool    `json:"running"`
	Status            Status  `json:"-"`
	CompletedShuttles int     `json:"completed_shuttles"`
}

// ShuttlesInLevel returns the repetitions required by the current level, or
// 0 once the protocol is exhausted.
func (s State) ShuttlesInLevel() int {
	if l, ok := protocol.Lookup(s.Level); ok {
		return l.Shuttles
	}
	return 0
}

// TickResult describes what a single Tick changed.
type TickResult struct {
	State        State
	LevelChanged bool
	Finished     bool
}

// Engine holds the level/shuttle/distance state of one test.
// Only the driver goroutine mutates it; everyone else reads copies.
type Engine struct {
	mu    sync.RWMutex
	state State
}

func NewEngine() *Engine {
	e := &Engine{}
	e.state = initialState()
	return e
}

func initialState() State {
	first := protocol.MustLookup(1)
	return State{
		Level:    1,
		Shuttle:  1,
		SpeedKmh: first.SpeedKmh,
		Status:   StatusIdle,
	}
}

// Start resets the test to level 1, shuttle 1 and marks it running.
func (e *Engine) Start() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = initialState()
	e.state.Running = true
	e.state.Status = StatusRunning
	return e.state
}

// Tick records completion of the current repetition.
func (e *Engine) Tick() TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Running {
		return TickResult{State: e.state}
	}

	var res TickResult
	e.state.DistanceMeters += protocol.ShuttleMeters
	e.state.CompletedShuttles++
	e.state.Shuttle++

	if e.state.Shuttle > e.state.ShuttlesInLevel() {
		e.state.Shuttle = 1
		e.state.Level++
		res.LevelChanged = true

		if next, ok := protocol.Lookup(e.state.Level); ok {
			e.state.SpeedKmh = next.SpeedKmh
		} else {
			e.state.Running = false
			e.state.Status = StatusFinished
			res.Finished = true
		}
	}

	res.State = e.state
	return res
}

// Stop cancels the test, keeping whatever was completed.
func (e *Engine) Stop() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Running {
		e.state.Running = false
		e.state.Status = StatusStopped
	}
	return e.state
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// RepetitionDuration is the time allowed for the current repetition.
func (e *Engine) RepetitionDuration() time.Duration {
	d, err := protocol.DurationForSpeed(e.State().SpeedKmh)
	if err != nil {
		// speeds come from the table, which has none <= 0
		panic(err)
	}
	return d
}
