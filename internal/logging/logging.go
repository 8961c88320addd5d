// Package logging routes the application's *log.Logger to a rotating file
// and, line by line, to the scoreboard's log panel.
package logging

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log file.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultFile is ~/.shuttle-run/shuttle-run.log, or a file in the working
// directory when there is no home directory.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shuttle-run.log"
	}
	return filepath.Join(home, ".shuttle-run", "shuttle-run.log")
}

// NewRotatingWriter opens a size-rotated log file.
func NewRotatingWriter(opts Options) (*lumberjack.Logger, error) {
	file := opts.File
	if file == "" {
		file = DefaultFile()
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}, nil
}

// Redirect points logger at the rotating file plus any extra writers. The
// returned closer closes the file.
func Redirect(logger *log.Logger, opts Options, extra ...io.Writer) (io.Closer, error) {
	if logger == nil {
		panic("Redirect: logger cannot be nil")
	}
	rotating, err := NewRotatingWriter(opts)
	if err != nil {
		return nil, err
	}
	writers := append([]io.Writer{rotating}, extra...)
	logger.SetOutput(io.MultiWriter(writers...))
	return rotating, nil
}

// ChanWriter is an io.Writer that sends every complete line to a channel.
// Sends never block: when the reader falls behind, lines are dropped and
// counted.
type ChanWriter struct {
	mu      sync.Mutex
	partial []byte
	lines   chan string
	closed  bool
	dropped atomic.Uint64
}

func NewChanWriter(buffer int) *ChanWriter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanWriter{lines: make(chan string, buffer)}
}

// Lines delivers each line with its trailing newline.
func (w *ChanWriter) Lines() <-chan string {
	return w.lines
}

func (w *ChanWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, errors.New("chan writer closed")
	}

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := string(w.partial[:i+1])
		w.partial = w.partial[i+1:]
		select {
		case w.lines <- line:
		default:
			w.dropped.Add(1)
		}
	}
	if len(w.partial) == 0 {
		w.partial = nil
	}
	return len(p), nil
}

// Dropped is the number of lines discarded because the channel was full.
func (w *ChanWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close closes the line channel; later writes fail.
func (w *ChanWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.lines)
	return nil
}
