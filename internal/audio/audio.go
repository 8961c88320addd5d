// Package audio plays the short cues that pace the runners.
// Every Player is fire-and-forget: Play returns immediately and a failure is
// logged, never returned, because a missing sound must not halt a test.
package audio

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Clip identifies a cue.
type Clip string

const (
	ClipCountdown Clip = "countdown" // each second of the get-ready countdown
	ClipShuttle   Clip = "shuttle"   // start of a repetition
	ClipLevel     Clip = "level"     // start of the first repetition of a new level
	ClipFinish    Clip = "finish"    // protocol exhausted or test stopped
)

// AllClips lists the clips in the order they are configured.
var AllClips = []Clip{ClipCountdown, ClipShuttle, ClipLevel, ClipFinish}

// Player plays a clip once.
type Player interface {
	Play(clip Clip)
}

// NullPlayer plays nothing.
type NullPlayer struct{}

func (NullPlayer) Play(Clip) {}

// Beeper is anything that can ring the terminal bell; tcell.Screen is one.
type Beeper interface {
	Beep() error
}

// BellPlayer rings the terminal bell, twice for a new level.
type BellPlayer struct {
	beeper Beeper
	logger *log.Logger
	gap    time.Duration
}

func NewBellPlayer(beeper Beeper, logger *log.Logger) *BellPlayer {
	if beeper == nil {
		panic("BellPlayer: beeper cannot be nil")
	}
	if logger == nil {
		panic("BellPlayer: logger cannot be nil")
	}
	return &BellPlayer{beeper: beeper, logger: logger, gap: 150 * time.Millisecond}
}

func (p *BellPlayer) Play(clip Clip) {
	rings := 1
	switch clip {
	case ClipLevel:
		rings = 2
	case ClipFinish:
		rings = 3
	}
	go func() {
		for i := 0; i < rings; i++ {
			if i > 0 {
				time.Sleep(p.gap)
			}
			if err := p.beeper.Beep(); err != nil {
				p.logger.Printf("Audio: bell failed: %v", err)
				return
			}
		}
	}()
}

// Runner starts an external command; replaced in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// CommandPlayer plays audio files through an external player such as
// `paplay`, `afplay` or `ffplay -nodisp -autoexit`.
type CommandPlayer struct {
	argv    []string
	files   map[Clip]string
	logger  *log.Logger
	run     Runner
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewCommandPlayer builds a player from a command line. The token "{file}"
// is replaced by the clip's path; without it the path is appended.
func NewCommandPlayer(command string, files map[Clip]string, logger *log.Logger) (*CommandPlayer, error) {
	if logger == nil {
		panic("CommandPlayer: logger cannot be nil")
	}
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("audio command is empty")
	}
	copied := make(map[Clip]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	return &CommandPlayer{
		argv:    argv,
		files:   copied,
		logger:  logger,
		run:     execRunner,
		timeout: 10 * time.Second,
	}, nil
}

// WithRunner swaps the process runner.
func (p *CommandPlayer) WithRunner(run Runner) *CommandPlayer {
	p.run = run
	return p
}

// File returns the audio file configured for clip; the level and finish
// cues fall back to the shuttle cue.
func (p *CommandPlayer) File(clip Clip) string {
	if f := p.files[clip]; f != "" {
		return f
	}
	if clip == ClipLevel || clip == ClipFinish {
		return p.files[ClipShuttle]
	}
	return ""
}

func (p *CommandPlayer) args(file string) []string {
	args := make([]string, 0, len(p.argv))
	substituted := false
	for _, a := range p.argv[1:] {
		if strings.Contains(a, "{file}") {
			a = strings.ReplaceAll(a, "{file}", file)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, file)
	}
	return args
}

func (p *CommandPlayer) Play(clip Clip) {
	file := p.File(clip)
	if file == "" {
		return
	}
	if _, err := os.Stat(file); err != nil {
		p.logger.Printf("Audio: cannot play %s: %v", clip, err)
		return
	}

	args := p.args(file)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.run(ctx, p.argv[0], args...); err != nil {
			p.logger.Printf("Audio: %s %v failed: %v", p.argv[0], args, err)
		}
	}()
}

// Wait blocks until every started playback has exited.
func (p *CommandPlayer) Wait() {
	p.wg.Wait()
}

// Switch forwards to a Player that can be replaced while the test runs,
// e.g. when the config file changes.
type Switch struct {
	current atomic.Pointer[Player]
}

func NewSwitch(p Player) *Switch {
	s := &Switch{}
	s.Set(p)
	return s
}

func (s *Switch) Set(p Player) {
	if p == nil {
		p = NullPlayer{}
	}
	s.current.Store(&p)
}

func (s *Switch) Play(clip Clip) {
	(*s.current.Load()).Play(clip)
}
