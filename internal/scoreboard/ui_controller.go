package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/results"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/vo2max"
)

// TestRunner starts and stops tests; *shuttle.Driver is one.
type TestRunner interface {
	Start(ctx context.Context) error
	Stop()
	Frame() shuttle.Frame
	OnPhaseChange(fn func(shuttle.Frame)) func()
}

// UIController handles UI events and coordinates the driver, roster and
// results with the UIModel
type UIController struct {
	model     *UIModel
	runner    TestRunner
	roster    *roster.Roster
	recorder  *results.Recorder
	exportDir string
	now       func() time.Time
	logger    *log.Logger

	mu      sync.Mutex
	session string

	unhook []func()
	ctx    context.Context
	cancel context.CancelFunc
}

// NewUIControllerArg holds the arguments for creating a new UIController
type NewUIControllerArg struct {
	Model     *UIModel
	Runner    TestRunner
	Roster    *roster.Roster
	Recorder  *results.Recorder
	ExportDir string // where 'e' writes CSV exports; "" for the working directory
	Logger    *log.Logger
}

func NewUIController(args NewUIControllerArg) *UIController {
	if args.Model == nil {
		panic("UIController: model cannot be nil")
	}
	if args.Runner == nil {
		panic("UIController: runner cannot be nil")
	}
	if args.Roster == nil {
		panic("UIController: roster cannot be nil")
	}
	if args.Recorder == nil {
		panic("UIController: recorder cannot be nil")
	}
	if args.Logger == nil {
		panic("UIController: logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &UIController{
		model:     args.Model,
		runner:    args.Runner,
		roster:    args.Roster,
		recorder:  args.Recorder,
		exportDir: args.ExportDir,
		now:       time.Now,
		logger:    args.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	c.unhook = append(c.unhook,
		args.Runner.OnPhaseChange(c.onPhaseChange),
		args.Roster.OnComplete(c.onPlayerComplete),
	)

	return c
}

// onPhaseChange runs on the driver goroutine for every phase transition.
func (c *UIController) onPhaseChange(f shuttle.Frame) {
	switch f.Phase {
	case shuttle.PhaseCountingDown, shuttle.PhaseRunning:
		c.mu.Lock()
		isNew := f.SessionID != c.session
		c.session = f.SessionID
		c.mu.Unlock()
		if !isNew {
			return
		}
		c.roster.Reset()
		c.recorder.SetSession(f.SessionID)
		c.model.ClearResults()
		c.model.RefreshPlayers()
		c.model.RememberPlayerNames(c.roster.Names())
		c.logger.Printf("UIController: Test %s started with %d players", f.SessionID, c.roster.Len())
	case shuttle.PhaseStopped:
		c.logger.Printf("UIController: Test stopped at Level %d Shuttle %d (%.0f m)", f.State.Level, f.State.Shuttle, f.State.DistanceMeters)
	case shuttle.PhaseFinished:
		c.logger.Printf("UIController: Protocol completed (%.0f m)", f.State.DistanceMeters)
	}
}

// onPlayerComplete runs on the caller of MarkComplete.
func (c *UIController) onPlayerComplete(rec roster.PlayerRecord) {
	c.recorder.Record(rec)
	c.model.AppendResult(results.FromRecord(c.recorder.Session(), rec).LogLine())
}

// StartTest starts a new test unless one is running
func (c *UIController) StartTest() {
	err := c.runner.Start(c.ctx)
	if errors.Is(err, shuttle.ErrAlreadyRunning) {
		c.logger.Printf("UIController: Test already running - press X to stop it first")
		return
	}
	if err != nil {
		c.logger.Printf("UIController: Cannot start test: %v", err)
	}
}

// StopTest stops the running test, keeping progress
func (c *UIController) StopTest() {
	c.runner.Stop()
}

// CompletePlayer records the current test position for playerID. It is only
// meaningful once a test has started; completing after a stop records the
// final position.
func (c *UIController) CompletePlayer(playerID int) {
	frame := c.runner.Frame()
	if frame.Phase == shuttle.PhaseIdle {
		c.logger.Printf("UIController: Start a test before completing players")
		return
	}
	rec, recorded, err := c.roster.MarkComplete(playerID, frame.State)
	if err != nil {
		c.logger.Printf("UIController: Cannot complete player %d: %v", playerID, err)
		return
	}
	if !recorded {
		c.logger.Printf("UIController: %s already completed (%s)", rec.Label(), rec.ResultText())
	}
}

// ExportResults writes every player to a timestamped CSV file
func (c *UIController) ExportResults() (string, error) {
	path := filepath.Join(c.exportDir, fmt.Sprintf("shuttle-run-%s.csv", c.now().Format("20060102-150405")))
	if err := results.Export(path, c.roster.Records()); err != nil {
		c.logger.Printf("UIController: Export failed: %v", err)
		return "", err
	}
	c.logger.Printf("UIController: Exported %d completed players to %s", len(c.roster.Completed()), path)
	return path, nil
}

// CalculateVO2max validates the calculator form and shows the estimate
func (c *UIController) CalculateVO2max(mode vo2max.Mode, age, sex, level, shuttles string) {
	in, err := vo2max.ParseInput(age, sex, level, shuttles)
	if err != nil {
		c.logger.Printf("UIController: VO2max input rejected: %v", err)
		c.model.SetCalculatorState(CalculatorState{Mode: mode, Error: vo2max.InvalidInputMessage})
		return
	}
	res, err := vo2max.Estimate(mode, in)
	if err != nil {
		c.model.SetCalculatorState(CalculatorState{Mode: mode, Error: vo2max.InvalidInputMessage})
		return
	}
	c.model.SetCalculatorState(CalculatorState{Mode: mode, Result: &res})
}

// OnPageChange handles when the user requests a page change
func (c *UIController) OnPageChange(page Page) {
	if info, ok := GetPageInfo(page); ok {
		c.logger.Printf("UIController: Switching to %s", info.DisplayName)
	}
	c.model.SetPage(page)
}

// OnEscapeKey goes back to the dashboard, or quits from it
func (c *UIController) OnEscapeKey() {
	if c.model.GetUIState().Page != PageDashboard {
		c.model.SetPage(PageDashboard)
		return
	}
	c.Quit()
}

func (c *UIController) Quit() {
	c.model.RequestCloseApplication()
}

// Shutdown cancels any running test and detaches from the driver and roster
func (c *UIController) Shutdown() {
	c.cancel()
	for _, fn := range c.unhook {
		fn()
	}
}
