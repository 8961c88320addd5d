package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/api"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/audio"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/config"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/hrm"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/logging"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/results"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/scoreboard"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
)

func main() {
	// Until the config is loaded, log to stderr
	logger := log.New(os.Stderr, "", log.LstdFlags)

	loader := config.NewLoader(logger)
	cfg, err := loader.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n%s", os.Args[0], loader.Usage())
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, loader.Usage())
		os.Exit(2)
	}

	// Logs go to the rotating file and to the log panel, never to the terminal
	// tview is drawing on.
	logLines := logging.NewChanWriter(256)
	logFile, err := logging.Redirect(logger, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, logLines)
	must("open log file", err)
	logger.Printf("Main: Starting with %d players", cfg.PlayerCount)

	stateFile := scoreboard.DefaultStateFile()
	players := roster.NewRoster(playerNames(cfg, scoreboard.LoadPlayerNames(stateFile, logger)))

	// The screen is created up front so the bell player can ring it
	screen, err := tcell.NewScreen()
	must("create screen", err)
	app := tview.NewApplication().SetScreen(screen)

	player := audio.NewSwitch(newAudioPlayer(cfg.Audio, screen, logger))
	driver := shuttle.NewDriver(shuttle.NewEngine(), player, logger,
		shuttle.WithCountdown(cfg.Countdown),
		shuttle.WithRenderInterval(cfg.RenderInterval),
	)

	sinks, err := results.Open(cfg.Results.Sinks, cfg.ResultsPaths())
	must("open results", err)
	recorder := results.NewRecorder(sinks, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := hrm.NewTracker(players, driver.Running, logger)
	monitor := newMonitor(cfg, players.Len(), logger)
	if monitor != nil {
		tracker.Attach(monitor)
		if err := monitor.Start(ctx); err != nil {
			logger.Printf("Main: Heart-rate monitors unavailable: %v", err)
		}
	}

	var server *api.Server
	if cfg.HTTPAddr != "" {
		opts := []api.Option{api.WithHeartRates(tracker)}
		if store, ok := sinks.Store(); ok {
			opts = append(opts, api.WithSessionStore(store))
		}
		server = api.NewServer(cfg.HTTPAddr, driver, players, logger, opts...)
		if err := server.Start(); err != nil {
			logger.Printf("Main: HTTP API unavailable: %v", err)
			server = nil
		}
	}

	// Only the audio settings take effect without a restart
	unwatch := loader.OnChange(func(next config.Config) {
		player.Set(newAudioPlayer(next.Audio, screen, logger))
		logger.Printf("Main: Audio switched to %s", next.Audio.Mode)
	})
	loader.Watch()

	model := scoreboard.NewUIModel(scoreboard.NewUIModelArg{
		Frames:     driver,
		Roster:     players,
		HeartRates: tracker,
		LogLines:   logLines.Lines(),
		StateFile:  stateFile,
		VO2maxMode: cfg.VO2maxMode,
		Logger:     logger,
	})
	controller := scoreboard.NewUIController(scoreboard.NewUIControllerArg{
		Model:    model,
		Runner:   driver,
		Roster:   players,
		Recorder: recorder,
		Logger:   logger,
	})
	view := scoreboard.NewBaseUIView(scoreboard.NewBaseUIViewArg{
		UIViewImpl:   scoreboard.NewCursesUIView(logger, app, model),
		UIModel:      model,
		UIController: controller,
		Logger:       logger,
	})

	runErr := view.Run()

	logger.Println("Main: Shutting down")
	view.Shutdown()
	controller.Shutdown()
	model.Shutdown()
	driver.Shutdown()
	unwatch()
	if server != nil {
		if err := server.Shutdown(); err != nil {
			logger.Printf("Main: HTTP shutdown: %v", err)
		}
	}
	if monitor != nil {
		monitor.Shutdown()
	}
	tracker.Shutdown()
	if err := recorder.Close(); err != nil {
		logger.Printf("Main: Closing results: %v", err)
	}
	if n := recorder.Failures(); n > 0 {
		logger.Printf("Main: %d results could not be stored", n)
	}
	logger.Println("Main: Bye")

	logger.SetOutput(io.Discard)
	logLines.Close()
	logFile.Close()

	must("run UI", runErr)
}

// playerNames uses the configured names, otherwise the names remembered from
// the last session, sized to the configured player count.
func playerNames(cfg config.Config, remembered []string) []string {
	if len(cfg.Players) > 0 {
		return cfg.Players
	}
	names := make([]string, cfg.PlayerCount)
	copy(names, remembered)
	return names
}

func newAudioPlayer(cfg config.AudioConfig, beeper audio.Beeper, logger *log.Logger) audio.Player {
	switch cfg.Mode {
	case config.AudioNone:
		return audio.NullPlayer{}
	case config.AudioCommand:
		p, err := audio.NewCommandPlayer(cfg.Command, map[audio.Clip]string{
			audio.ClipCountdown: cfg.CountdownClip,
			audio.ClipShuttle:   cfg.ShuttleClip,
			audio.ClipLevel:     cfg.LevelClip,
			audio.ClipFinish:    cfg.FinishClip,
		}, logger)
		if err == nil {
			return p
		}
		logger.Printf("Main: Audio command unusable, using the terminal bell: %v", err)
	}
	return audio.NewBellPlayer(beeper, logger)
}

func newMonitor(cfg config.Config, playerCount int, logger *log.Logger) hrm.Monitor {
	switch {
	case cfg.HRM.Mock:
		ids := make([]int, playerCount)
		for i := range ids {
			ids[i] = i + 1
		}
		return hrm.NewMockMonitor(logger, hrm.MockMonitorConfig{Players: ids, Interval: time.Second})
	case cfg.HRM.Enabled:
		assignments, err := hrm.ParseAssignments(cfg.HRM.Devices)
		if err != nil {
			logger.Printf("Main: Ignoring heart-rate monitors: %v", err)
			return nil
		}
		return hrm.NewBLEMonitor(bluetooth.DefaultAdapter, assignments, logger)
	default:
		return nil
	}
}

func must(action string, err error) {
	if err != nil {
		panic("failed to " + action + ": " + err.Error())
	}
}
