package hrm

import (
	"log"
	"sync"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
)

// Tracker keeps the latest reading per player and raises the roster's peak
// heart rate while a test is active.
type Tracker struct {
	roster *roster.Roster
	active func() bool
	logger *log.Logger

	mu     sync.RWMutex
	latest map[int]Reading

	readings     chan Reading
	unlisten     []func()
	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewTracker(r *roster.Roster, active func() bool, logger *log.Logger) *Tracker {
	if r == nil {
		panic("Tracker: roster cannot be nil")
	}
	if active == nil {
		panic("Tracker: active cannot be nil")
	}
	if logger == nil {
		panic("Tracker: logger cannot be nil")
	}
	t := &Tracker{
		roster:   r,
		active:   active,
		logger:   logger,
		latest:   make(map[int]Reading),
		readings: make(chan Reading, 64),
		doneChan: make(chan struct{}),
	}

	t.wg.Add(1)
	safego.Go(logger, "Tracker.loop", func() {
		defer t.wg.Done()
		for {
			select {
			case <-t.doneChan:
				return
			case rd := <-t.readings:
				t.handle(rd)
			}
		}
	})
	return t
}

// Attach starts consuming m's readings.
func (t *Tracker) Attach(m Monitor) {
	unlisten := m.ListenToReadings(t.readings)
	t.mu.Lock()
	t.unlisten = append(t.unlisten, unlisten)
	t.mu.Unlock()
}

func (t *Tracker) handle(rd Reading) {
	t.mu.Lock()
	t.latest[rd.PlayerID] = rd
	t.mu.Unlock()

	if !t.active() {
		return
	}
	if err := t.roster.SetPeakHeartRate(rd.PlayerID, rd.BPM); err != nil {
		t.logger.Printf("Tracker: %v", err)
	}
}

// Latest returns the most recent reading per player id.
func (t *Tracker) Latest() map[int]Reading {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]Reading, len(t.latest))
	for id, rd := range t.latest {
		out[id] = rd
	}
	return out
}

func (t *Tracker) Shutdown() {
	t.shutdownOnce.Do(func() {
		t.mu.Lock()
		for _, fn := range t.unlisten {
			fn()
		}
		t.unlisten = nil
		t.mu.Unlock()
		close(t.doneChan)
		t.wg.Wait()
	})
}
