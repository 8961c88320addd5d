package hrm

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/events"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
)

// Verify MockMonitor implements Monitor
var _ Monitor = (*MockMonitor)(nil)

// MockMonitorConfig configures the simulated straps.
type MockMonitorConfig struct {
	Players  []int         // player ids wearing a simulated strap
	Interval time.Duration // time between readings
	RestBPM  int
	MaxBPM   int
	Ramp     time.Duration // time to climb from rest to max
}

// MockMonitor simulates heart-rate straps without Bluetooth hardware: every
// player's heart rate climbs from rest towards max over the ramp time.
type MockMonitor struct {
	cfg    MockMonitorConfig
	logger *log.Logger
	now    func() time.Time
	jitter func() int

	readings *events.Broadcaster[Reading]

	mu      sync.Mutex
	started time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewMockMonitor(logger *log.Logger, cfg MockMonitorConfig) *MockMonitor {
	if logger == nil {
		panic("MockMonitor: logger cannot be nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.RestBPM <= 0 {
		cfg.RestBPM = 70
	}
	if cfg.MaxBPM <= cfg.RestBPM {
		cfg.MaxBPM = 195
	}
	if cfg.Ramp <= 0 {
		cfg.Ramp = 15 * time.Minute
	}
	return &MockMonitor{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		jitter:   func() int { return rand.IntN(7) - 3 },
		readings: events.NewBroadcaster[Reading](false),
	}
}

func (m *MockMonitor) Start(ctx context.Context) error {
	m.logger.Printf("MockMonitor: Simulating %d heart-rate monitors", len(m.cfg.Players))
	m.mu.Lock()
	m.started = m.now()
	m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	safego.Go(m.logger, "MockMonitor.loop", func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.emit()
			}
		}
	})
	return nil
}

// Restart makes the simulated heart rates start again from rest.
func (m *MockMonitor) Restart() {
	m.mu.Lock()
	m.started = m.now()
	m.mu.Unlock()
}

func (m *MockMonitor) ListenToReadings(ch chan Reading) func() {
	return m.readings.Listen(ch)
}

// BPM is the simulated heart rate after elapsed time, without jitter.
func (m *MockMonitor) BPM(elapsed time.Duration) int {
	frac := float64(elapsed) / float64(m.cfg.Ramp)
	frac = min(max(frac, 0), 1)
	return m.cfg.RestBPM + int(frac*float64(m.cfg.MaxBPM-m.cfg.RestBPM))
}

func (m *MockMonitor) emit() {
	now := m.now()
	m.mu.Lock()
	elapsed := now.Sub(m.started)
	m.mu.Unlock()

	base := m.BPM(elapsed)
	for _, id := range m.cfg.Players {
		bpm := min(max(base+m.jitter(), m.cfg.RestBPM), m.cfg.MaxBPM)
		m.readings.Notify(Reading{PlayerID: id, Address: "MOCK", BPM: bpm, At: now})
	}
}

func (m *MockMonitor) Shutdown() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		m.logger.Printf("MockMonitor: Shutdown complete")
	})
}
