package shuttle

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/audio"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/events"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
)

var (
	// ErrAlreadyRunning is returned by Start while a test is counting down or running.
	ErrAlreadyRunning = errors.New("test already running")
	// ErrShutdown is returned by Start after Shutdown.
	ErrShutdown = errors.New("driver shut down")
)

// Default timings.
const (
	DefaultCountdown      = 10 * time.Second
	DefaultRenderInterval = 100 * time.Millisecond
)

// Phase is what the driver is doing right now.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountingDown
	PhaseRunning
	PhaseFinished
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountingDown:
		return "counting_down"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Active reports whether a test is in progress.
func (p Phase) Active() bool {
	return p == PhaseCountingDown || p == PhaseRunning
}

// Frame is one published snapshot of the test.
type Frame struct {
	Phase               Phase         `json:"phase"`
	State               State         `json:"state"`
	SessionID           string        `json:"session_id,omitempty"`
	StartedAt           time.Time     `json:"started_at,omitzero"`
	CountdownRemaining  time.Duration `json:"countdown_remaining_ns"`
	RepetitionDuration  time.Duration `json:"repetition_duration_ns"`
	RepetitionElapsed   time.Duration `json:"repetition_elapsed_ns"`
	RepetitionRemaining time.Duration `json:"repetition_remaining_ns"`
	TestElapsed         time.Duration `json:"test_elapsed_ns"`
}

type driverCommand int

const (
	cmdStart driverCommand = iota
	cmdStop
)

type command struct {
	kind      driverCommand
	cancelled <-chan struct{}
}

// run is the loop-local bookkeeping of one test.
type run struct {
	sessionID     string
	startedAt     time.Time
	phase         Phase
	countdownEnd  time.Time
	countdownSecs int
	repStart      time.Time
	repEnd        time.Time
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

func WithClock(c Clock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithCountdown sets the get-ready countdown; 0 starts the first repetition immediately.
func WithCountdown(c time.Duration) DriverOption {
	return func(d *Driver) {
		if c < 0 {
			c = 0
		}
		d.countdown = c
	}
}

func WithRenderInterval(i time.Duration) DriverOption {
	return func(d *Driver) {
		if i > 0 {
			d.renderInterval = i
		}
	}
}

func WithSessionIDs(next func() string) DriverOption {
	return func(d *Driver) { d.newSessionID = next }
}

// Driver is the single scheduled task that paces a test: it runs the
// countdown, plays a cue at the start of every repetition, publishes render
// frames and ticks the engine when a repetition's time is up.
type Driver struct {
	engine *Engine
	player audio.Player
	logger *log.Logger

	clock          Clock
	countdown      time.Duration
	renderInterval time.Duration
	newSessionID   func() string

	frames     *events.Broadcaster[Frame]
	phaseHooks *events.Hooks[Frame]

	mu     sync.Mutex
	active bool

	cmdChan      chan command
	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewDriver(engine *Engine, player audio.Player, logger *log.Logger, opts ...DriverOption) *Driver {
	if engine == nil {
		panic("Driver: engine cannot be nil")
	}
	if player == nil {
		panic("Driver: player cannot be nil")
	}
	if logger == nil {
		panic("Driver: logger cannot be nil")
	}

	d := &Driver{
		engine:         engine,
		player:         player,
		logger:         logger,
		clock:          RealClock{},
		countdown:      DefaultCountdown,
		renderInterval: DefaultRenderInterval,
		newSessionID:   func() string { return ulid.Make().String() },
		frames:         events.NewBroadcaster[Frame](true),
		phaseHooks:     events.NewHooks[Frame](),
		cmdChan:        make(chan command, 1),
		doneChan:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.frames.Notify(Frame{Phase: PhaseIdle, State: engine.State()})

	d.wg.Add(1)
	safego.Go(logger, "Driver.loop", d.loop)

	return d
}

// Start begins a fresh test. Cancelling ctx stops it like Stop does.
func (d *Driver) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-d.doneChan:
		return ErrShutdown
	default:
	}

	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		d.logger.Printf("Driver: Test already running")
		return ErrAlreadyRunning
	}
	d.active = true
	d.mu.Unlock()

	select {
	case d.cmdChan <- command{kind: cmdStart, cancelled: ctx.Done()}:
		d.logger.Printf("Driver: Starting test")
		return nil
	case <-d.doneChan:
		d.setActive(false)
		return ErrShutdown
	}
}

// Stop cancels the running test, keeping its progress.
func (d *Driver) Stop() {
	if !d.Running() {
		d.logger.Printf("Driver: No test to stop")
		return
	}
	d.logger.Printf("Driver: Stopping test")
	select {
	case d.cmdChan <- command{kind: cmdStop}:
	case <-d.doneChan:
	}
}

// Shutdown stops any test and waits for the loop to exit.
// Safe to call multiple times.
func (d *Driver) Shutdown() {
	d.shutdownOnce.Do(func() {
		d.logger.Printf("Driver: Shutting down")
		close(d.doneChan)
		d.wg.Wait()
		d.logger.Printf("Driver: Shutdown complete")
	})
}

// Running reports whether a test is counting down or running.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// ListenToState registers ch for every frame; the latest frame is replayed
// immediately. Slow listeners miss frames rather than stall the test.
func (d *Driver) ListenToState(ch chan Frame) func() {
	return d.frames.Listen(ch)
}

// OnPhaseChange registers fn for frames that change the phase or the
// session. fn runs on the driver goroutine and must not block.
func (d *Driver) OnPhaseChange(fn func(Frame)) func() {
	return d.phaseHooks.Add(fn)
}

// Frame returns the most recently published frame.
func (d *Driver) Frame() Frame {
	f, _ := d.frames.Last()
	return f
}

func (d *Driver) Engine() *Engine {
	return d.engine
}

func (d *Driver) setActive(v bool) {
	d.mu.Lock()
	d.active = v
	d.mu.Unlock()
}

func (d *Driver) loop() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.renderInterval)
	ticker.Stop() // started with the first test

	var r *run
	var cancelled <-chan struct{}

	for {
		select {
		case <-d.doneChan:
			ticker.Stop()
			if r != nil && r.phase.Active() {
				d.halt(r, "shutdown")
			}
			d.logger.Printf("Driver: Goroutine exiting")
			return

		case cmd := <-d.cmdChan:
			switch cmd.kind {
			case cmdStart:
				r = d.begin()
				cancelled = cmd.cancelled
				ticker.Reset(d.renderInterval)
			case cmdStop:
				if r != nil && r.phase.Active() {
					ticker.Stop()
					cancelled = nil
					d.halt(r, "stopped")
				}
			}

		case <-cancelled:
			ticker.Stop()
			cancelled = nil
			if r != nil && r.phase.Active() {
				d.halt(r, "context cancelled")
			}

		case <-ticker.C():
			if r == nil || !r.phase.Active() {
				continue
			}
			if !d.advance(r, d.clock.Now()) {
				ticker.Stop()
				cancelled = nil
			}
		}
	}
}

func (d *Driver) begin() *run {
	now := d.clock.Now()
	r := &run{sessionID: d.newSessionID(), startedAt: now}
	d.engine.Start()

	if d.countdown > 0 {
		r.phase = PhaseCountingDown
		r.countdownEnd = now.Add(d.countdown)
		r.countdownSecs = ceilSeconds(d.countdown)
		d.player.Play(audio.ClipCountdown)
		d.logger.Printf("Driver: Test %s counting down from %v", r.sessionID, d.countdown)
	} else {
		d.beginRepetitions(r, now)
		d.logger.Printf("Driver: Test %s started", r.sessionID)
	}

	d.publish(r, now, true)
	return r
}

func (d *Driver) beginRepetitions(r *run, at time.Time) {
	r.phase = PhaseRunning
	r.repStart = at
	r.repEnd = at.Add(d.engine.RepetitionDuration())
	d.player.Play(audio.ClipShuttle)
}

// advance moves r forward to now and reports whether the test is still active.
// Each repetition ends exactly one repetition duration after the previous
// one, however late the ticker fires.
func (d *Driver) advance(r *run, now time.Time) bool {
	switch r.phase {
	case PhaseCountingDown:
		remaining := r.countdownEnd.Sub(now)
		if remaining > 0 {
			if secs := ceilSeconds(remaining); secs < r.countdownSecs {
				r.countdownSecs = secs
				d.player.Play(audio.ClipCountdown)
			}
			d.publish(r, now, false)
			return true
		}
		d.beginRepetitions(r, r.countdownEnd)
		d.logger.Printf("Driver: Test %s started", r.sessionID)
		d.publish(r, now, true)
		return true

	case PhaseRunning:
		completed := 0
		levelChanged := false
		for !now.Before(r.repEnd) {
			res := d.engine.Tick()
			completed++
			if res.Finished {
				r.phase = PhaseFinished
				r.repStart = r.repEnd
				d.player.Play(audio.ClipFinish)
				d.logger.Printf("Driver: Test %s finished, protocol exhausted at %.0f m",
					r.sessionID, res.State.DistanceMeters)
				d.publish(r, now, true)
				return false
			}
			if res.LevelChanged {
				levelChanged = true
				d.logger.Printf("Driver: Level %d at %.1f km/h", res.State.Level, res.State.SpeedKmh)
			}
			r.repStart = r.repEnd
			r.repEnd = r.repEnd.Add(d.engine.RepetitionDuration())
		}

		if completed > 1 {
			d.logger.Printf("Driver: Caught up %d repetitions", completed)
		}
		if levelChanged {
			d.player.Play(audio.ClipLevel)
		} else if completed > 0 {
			d.player.Play(audio.ClipShuttle)
		}
		d.publish(r, now, false)
		return true
	}
	return false
}

func (d *Driver) halt(r *run, reason string) {
	state := d.engine.Stop()
	r.phase = PhaseStopped
	d.player.Play(audio.ClipFinish)
	d.logger.Printf("Driver: Test %s %s at level %d shuttle %d (%.0f m)",
		r.sessionID, reason, state.Level, state.Shuttle, state.DistanceMeters)
	d.publish(r, d.clock.Now(), true)
}

func (d *Driver) publish(r *run, now time.Time, phaseChanged bool) {
	f := d.frame(r, now)
	if !f.Phase.Active() {
		d.setActive(false)
	}
	if phaseChanged {
		d.phaseHooks.Fire(f)
	}
	d.frames.Notify(f)
}

func (d *Driver) frame(r *run, now time.Time) Frame {
	f := Frame{
		Phase:       r.phase,
		State:       d.engine.State(),
		SessionID:   r.sessionID,
		StartedAt:   r.startedAt,
		TestElapsed: now.Sub(r.startedAt),
	}
	switch r.phase {
	case PhaseCountingDown:
		f.CountdownRemaining = max(r.countdownEnd.Sub(now), 0)
	case PhaseRunning:
		f.RepetitionDuration = r.repEnd.Sub(r.repStart)
		f.RepetitionElapsed = min(max(now.Sub(r.repStart), 0), f.RepetitionDuration)
		f.RepetitionRemaining = f.RepetitionDuration - f.RepetitionElapsed
	}
	return f
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
