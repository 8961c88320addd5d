package scoreboard

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/events"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/hrm"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/vo2max"
)

// FrameSource publishes test frames; *shuttle.Driver is one.
type FrameSource interface {
	ListenToState(ch chan shuttle.Frame) func()
}

// HeartRates supplies the latest reading per player; *hrm.Tracker is one.
type HeartRates interface {
	Latest() map[int]hrm.Reading
}

// UIState holds the current state of the UI that views need to render
type UIState struct {
	Page Page
}

// PlayerRow is one line of the players panel.
type PlayerRow struct {
	roster.PlayerRecord
	HeartRate int
}

// PlayersSnapshot is every player plus the statistics derived from them.
type PlayersSnapshot struct {
	Rows  []PlayerRow
	Stats roster.Stats
}

// CalculatorState is what the VO2max page shows.
type CalculatorState struct {
	Mode   vo2max.Mode
	Result *vo2max.Result
	Error  string
}

type UIModel struct {
	logEvent              *events.Broadcaster[string]
	frameEvent            *events.Broadcaster[shuttle.Frame]
	playersEvent          *events.Broadcaster[PlayersSnapshot]
	resultsEvent          *events.Broadcaster[[]string]
	uiStateEvent          *events.Broadcaster[UIState]
	calculatorEvent       *events.Broadcaster[CalculatorState]
	closeApplicationEvent *events.Broadcaster[struct{}]

	roster      *roster.Roster
	heartRates  HeartRates
	persistence *uiModelPersistence

	uiState     UIState
	frame       shuttle.Frame
	players     PlayersSnapshot
	resultLines []string
	calculator  CalculatorState
	mu          sync.RWMutex

	logLines []string
	logMu    sync.RWMutex

	unhook func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

// NewUIModelArg holds the arguments for creating a new UIModel
type NewUIModelArg struct {
	Frames     FrameSource
	Roster     *roster.Roster
	HeartRates HeartRates // optional
	LogLines   <-chan string
	StateFile  string // "" for DefaultStateFile
	VO2maxMode vo2max.Mode
	Logger     *log.Logger

	// HeartRateRefresh is how often heart rates are pulled into the players
	// panel; defaults to one second.
	HeartRateRefresh time.Duration
}

func NewUIModel(args NewUIModelArg) *UIModel {
	if args.Logger == nil {
		panic("UIModel: logger cannot be nil")
	}
	if args.Frames == nil {
		panic("UIModel: frames cannot be nil")
	}
	if args.Roster == nil {
		panic("UIModel: roster cannot be nil")
	}
	if args.LogLines == nil {
		panic("UIModel: logLines cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	model := &UIModel{
		logEvent:              events.NewBroadcaster[string](false),
		frameEvent:            events.NewBroadcaster[shuttle.Frame](true),
		playersEvent:          events.NewBroadcaster[PlayersSnapshot](true),
		resultsEvent:          events.NewBroadcaster[[]string](true),
		uiStateEvent:          events.NewBroadcaster[UIState](true),
		calculatorEvent:       events.NewBroadcaster[CalculatorState](true),
		closeApplicationEvent: events.NewBroadcaster[struct{}](true),
		roster:                args.Roster,
		heartRates:            args.HeartRates,
		persistence:           newUIModelPersistence(args.StateFile, args.Logger),
		uiState:               UIState{Page: PageDashboard},
		logLines:              make([]string, 0, maxLogLines),
		ctx:                   ctx,
		cancel:                cancel,
		logger:                args.Logger,
	}

	// the mode last picked on the calculator page wins over the configured default
	mode := args.VO2maxMode
	if saved := model.persistence.getVO2maxMode(); saved != "" {
		if m, err := vo2max.ParseMode(saved); err == nil {
			mode = m
		}
	}
	if mode == "" {
		mode = vo2max.ModeLinearLevel
	}
	model.calculator = CalculatorState{Mode: mode}
	model.calculatorEvent.Notify(model.calculator)
	model.uiStateEvent.Notify(model.uiState)
	model.resultsEvent.Notify(nil)

	model.unhook = args.Roster.OnComplete(func(roster.PlayerRecord) { model.RefreshPlayers() })
	model.RefreshPlayers()

	model.wg.Add(1)
	safego.Go(model.logger, "UIModel.listenToFrames", func() { model.listenToFrames(ctx, args.Frames) })

	model.wg.Add(1)
	safego.Go(model.logger, "UIModel.readFromLogChannel", func() { model.readFromLogChannel(ctx, args.LogLines) })

	if args.HeartRates != nil {
		refresh := args.HeartRateRefresh
		if refresh <= 0 {
			refresh = time.Second
		}
		model.wg.Add(1)
		safego.Go(model.logger, "UIModel.pollHeartRates", func() { model.pollHeartRates(ctx, refresh) })
	}

	return model
}

// Shutdown stops all goroutines and waits for them to finish
func (m *UIModel) Shutdown() {
	m.logger.Println("UIModel: Shutting down")
	m.unhook()
	m.cancel()
	m.wg.Wait()
	m.logger.Println("UIModel: Shutdown complete")
}

// ListenToLog registers a channel to receive log lines
func (m *UIModel) ListenToLog(ch chan string) func() {
	return m.logEvent.Listen(ch)
}

// ListenToFrame registers a channel to receive test frames
func (m *UIModel) ListenToFrame(ch chan shuttle.Frame) func() {
	return m.frameEvent.Listen(ch)
}

// ListenToPlayers registers a channel to receive roster changes
func (m *UIModel) ListenToPlayers(ch chan PlayersSnapshot) func() {
	return m.playersEvent.Listen(ch)
}

// ListenToResults registers a channel to receive the results log
func (m *UIModel) ListenToResults(ch chan []string) func() {
	return m.resultsEvent.Listen(ch)
}

// ListenToUIState registers a channel to receive page changes
func (m *UIModel) ListenToUIState(ch chan UIState) func() {
	return m.uiStateEvent.Listen(ch)
}

// ListenToCalculator registers a channel to receive calculator results
func (m *UIModel) ListenToCalculator(ch chan CalculatorState) func() {
	return m.calculatorEvent.Listen(ch)
}

// ListenToCloseApplication registers a channel to receive close application signals
func (m *UIModel) ListenToCloseApplication(ch chan struct{}) func() {
	return m.closeApplicationEvent.Listen(ch)
}

// RequestCloseApplication signals that the application should close
func (m *UIModel) RequestCloseApplication() {
	m.closeApplicationEvent.Notify(struct{}{})
}

func (m *UIModel) GetUIState() UIState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uiState
}

// SetPage updates the current page and notifies listeners
func (m *UIModel) SetPage(page Page) {
	m.mu.Lock()
	if m.uiState.Page == page {
		m.mu.Unlock()
		return
	}
	m.uiState.Page = page
	state := m.uiState
	m.mu.Unlock()

	m.uiStateEvent.Notify(state)
}

// GetFrame returns the last frame received from the driver
func (m *UIModel) GetFrame() shuttle.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame
}

// GetPlayers returns the last players snapshot
func (m *UIModel) GetPlayers() PlayersSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players
}

// RefreshPlayers rebuilds the players snapshot from the roster and the
// latest heart rates and notifies listeners.
func (m *UIModel) RefreshPlayers() {
	records := m.roster.Records()
	var latest map[int]hrm.Reading
	if m.heartRates != nil {
		latest = m.heartRates.Latest()
	}
	rows := make([]PlayerRow, len(records))
	for i, rec := range records {
		rows[i] = PlayerRow{PlayerRecord: rec, HeartRate: latest[rec.PlayerID].BPM}
	}
	snapshot := PlayersSnapshot{Rows: rows, Stats: m.roster.Stats()}

	m.mu.Lock()
	m.players = snapshot
	m.mu.Unlock()

	m.playersEvent.Notify(snapshot)
}

// AppendResult adds a line to the results log
func (m *UIModel) AppendResult(line string) {
	m.mu.Lock()
	m.resultLines = append(m.resultLines, line)
	if len(m.resultLines) > maxResultLines {
		m.resultLines = m.resultLines[len(m.resultLines)-maxResultLines:]
	}
	lines := slices.Clone(m.resultLines)
	m.mu.Unlock()

	m.resultsEvent.Notify(lines)
}

// ClearResults empties the results log for a new test
func (m *UIModel) ClearResults() {
	m.mu.Lock()
	m.resultLines = nil
	m.mu.Unlock()

	m.resultsEvent.Notify(nil)
}

// GetResults returns a copy of the results log
func (m *UIModel) GetResults() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.resultLines)
}

func (m *UIModel) GetCalculatorState() CalculatorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calculator
}

// SetCalculatorState updates the calculator display and remembers its mode
func (m *UIModel) SetCalculatorState(state CalculatorState) {
	m.mu.Lock()
	m.calculator = state
	m.mu.Unlock()

	m.persistence.setVO2maxMode(string(state.Mode))
	m.calculatorEvent.Notify(state)
}

// RememberPlayerNames stores the roster names for the next launch
func (m *UIModel) RememberPlayerNames(names []string) {
	m.persistence.setPlayerNames(names)
}

func (m *UIModel) listenToFrames(ctx context.Context, frames FrameSource) {
	defer m.wg.Done()

	ch := make(chan shuttle.Frame, 1)
	unregister := frames.ListenToState(ch)
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			m.mu.Lock()
			m.frame = frame
			m.mu.Unlock()

			m.frameEvent.Notify(frame)
		}
	}
}

func (m *UIModel) pollHeartRates(ctx context.Context, every time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshPlayers()
		}
	}
}

// readFromLogChannel reads log lines from the channel and populates logLines
func (m *UIModel) readFromLogChannel(ctx context.Context, logChan <-chan string) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-logChan:
			if !ok {
				return
			}

			m.logMu.Lock()
			m.logLines = append(m.logLines, line)
			if len(m.logLines) > maxLogLines {
				m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
			}
			m.logMu.Unlock()

			m.logEvent.Notify(line)
		}
	}
}

// GetLogTail returns the last n lines of logs
func (m *UIModel) GetLogTail(n int) []string {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	if n >= len(m.logLines) {
		return slices.Clone(m.logLines)
	}
	return slices.Clone(m.logLines[len(m.logLines)-n:])
}
