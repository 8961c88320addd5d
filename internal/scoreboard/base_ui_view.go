package scoreboard

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
)

// BaseUIView contains the base logic shared by all UI implementations
type BaseUIView struct {
	uiViewImpl   UIViewImpl
	uiModel      *UIModel
	uiController *UIController
	context      context.Context
	cancelFunc   context.CancelFunc
	waitGroup    sync.WaitGroup
	logger       *log.Logger
}

// NewBaseUIViewArg holds the arguments for creating a new BaseUIView
type NewBaseUIViewArg struct {
	UIViewImpl   UIViewImpl
	UIModel      *UIModel
	UIController *UIController
	Logger       *log.Logger
}

// NewBaseUIView creates a new BaseUIView with the given implementation
func NewBaseUIView(args NewBaseUIViewArg) *BaseUIView {
	if args.Logger == nil {
		panic("BaseUIView: logger cannot be nil")
	}
	if args.UIViewImpl == nil {
		panic("BaseUIView: UIViewImpl cannot be nil")
	}
	if args.UIModel == nil {
		panic("BaseUIView: UIModel cannot be nil")
	}
	if args.UIController == nil {
		panic("BaseUIView: UIController cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())

	base := &BaseUIView{
		uiViewImpl:   args.UIViewImpl,
		uiModel:      args.UIModel,
		uiController: args.UIController,
		context:      ctx,
		cancelFunc:   cancel,
		logger:       args.Logger,
	}

	args.UIViewImpl.Initialize(args.UIController)
	args.UIViewImpl.SetupKeyboardHandlers(args.UIController)
	args.UIViewImpl.SetPage(args.UIModel.GetUIState().Page)

	base.waitGroup.Add(1)
	safego.Go(base.logger, "BaseUIView.monitorLogResize", base.monitorLogResize)
	base.updateLogDisplay()

	base.setupEventListeners()

	return base
}

// listen runs apply for every value published on ch until the view shuts down.
func listen[T any](base *BaseUIView, name string, register func(chan T) func(), apply func(T)) {
	ch := make(chan T, 1)
	unregister := register(ch)
	base.waitGroup.Add(1)
	safego.Go(base.logger, name, func() {
		defer base.waitGroup.Done()
		defer unregister()
		for {
			select {
			case <-base.context.Done():
				return
			case v, ok := <-ch:
				if !ok {
					return
				}
				apply(v)
			}
		}
	})
}

func (base *BaseUIView) draw() {
	if err := base.uiViewImpl.Draw(); err != nil {
		base.logger.Printf("BaseUIView: Error drawing: %v", err)
	}
}

func (base *BaseUIView) setupEventListeners() {
	m := base.uiModel

	// When a new log arrives, update the display to show the tail
	listen(base, "BaseUIView.log", m.ListenToLog, func(string) {
		base.updateLogDisplay()
		base.draw()
	})

	listen(base, "BaseUIView.frame", m.ListenToFrame, func(f shuttle.Frame) {
		base.uiViewImpl.UpdateFrame(f)
		base.draw()
	})

	listen(base, "BaseUIView.players", m.ListenToPlayers, func(p PlayersSnapshot) {
		base.uiViewImpl.SetPlayers(p)
		base.draw()
	})

	listen(base, "BaseUIView.results", m.ListenToResults, func(lines []string) {
		base.uiViewImpl.SetResults(lines)
		base.draw()
	})

	listen(base, "BaseUIView.uiState", m.ListenToUIState, func(s UIState) {
		base.uiViewImpl.SetPage(s.Page)
		base.draw()
	})

	listen(base, "BaseUIView.calculator", m.ListenToCalculator, func(s CalculatorState) {
		base.uiViewImpl.UpdateCalculator(s)
		base.draw()
	})

	listen(base, "BaseUIView.close", m.ListenToCloseApplication, func(struct{}) {
		base.uiViewImpl.Stop()
	})
}

func (base *BaseUIView) updateLogDisplay() {
	height := base.uiViewImpl.GetLogViewHeight()
	if height <= 0 {
		return
	}

	logLines := base.uiModel.GetLogTail(height)

	base.uiViewImpl.ClearLogView()
	for _, line := range logLines {
		if err := base.uiViewImpl.WriteLogLine(line); err != nil {
			base.logger.Printf("BaseUIView: Error writing to log view: %v", err)
		}
	}
}

func (base *BaseUIView) monitorLogResize() {
	defer base.waitGroup.Done()
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-base.context.Done():
			return
		case <-ticker.C:
			height := base.uiViewImpl.GetLogViewHeight()
			if height != lastHeight && height > 0 {
				lastHeight = height
				base.updateLogDisplay()
				base.draw()
			}
		}
	}
}

// Shutdown stops all goroutines and waits for them to finish
func (base *BaseUIView) Shutdown() {
	base.logger.Println("BaseUIView: Shutting down")
	base.cancelFunc()
	base.waitGroup.Wait()
	base.logger.Println("BaseUIView: Shutdown complete")
}

// Run starts the UI and blocks until it exits
func (base *BaseUIView) Run() error {
	return base.uiViewImpl.Run()
}
