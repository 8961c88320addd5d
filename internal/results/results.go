// Package results receives player completions and writes them somewhere:
// an in-memory log, CSV, JSON lines or SQLite.
package results

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
)

// Result is one player's completion within a test session.
type Result struct {
	SessionID      string    `json:"session_id"`
	PlayerID       int       `json:"player_id"`
	Name           string    `json:"name"`
	Level          int       `json:"level"`
	Shuttle        int       `json:"shuttle"`
	DistanceMeters float64   `json:"distance_m"`
	SpeedKmh       float64   `json:"speed_kmh"`
	PeakHeartRate  int       `json:"peak_heart_rate,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
	Text           string    `json:"result"`
}

func FromRecord(sessionID string, rec roster.PlayerRecord) Result {
	return Result{
		SessionID:      sessionID,
		PlayerID:       rec.PlayerID,
		Name:           rec.Name,
		Level:          rec.CompletedLevel,
		Shuttle:        rec.CompletedShuttle,
		DistanceMeters: rec.DistanceMeters,
		SpeedKmh:       rec.SpeedKmh,
		PeakHeartRate:  rec.PeakHeartRate,
		CompletedAt:    rec.CompletedAt,
		Text:           rec.ResultText(),
	}
}

// LogLine is how a result appears in the results panel.
func (r Result) LogLine() string {
	return fmt.Sprintf("Player %d - %s", r.PlayerID, r.Text)
}

// Sink stores results.
type Sink interface {
	Record(ctx context.Context, r Result) error
	Close() error
}

// Multi fans every result out to all sinks. A failing sink does not stop
// the others; the errors are joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, r Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder writes completions to a sink on behalf of the UI, logging
// failures instead of returning them.
type Recorder struct {
	sink    Sink
	logger  *log.Logger
	timeout time.Duration

	mu        sync.RWMutex
	sessionID string
	failures  int
}

func NewRecorder(sink Sink, logger *log.Logger) *Recorder {
	if sink == nil {
		panic("Recorder: sink cannot be nil")
	}
	if logger == nil {
		panic("Recorder: logger cannot be nil")
	}
	return &Recorder{sink: sink, logger: logger, timeout: 5 * time.Second}
}

// SetSession tags subsequent results with sessionID.
func (r *Recorder) SetSession(sessionID string) {
	r.mu.Lock()
	r.sessionID = sessionID
	r.mu.Unlock()
}

func (r *Recorder) Session() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

// Record stores rec under the current session and reports success.
func (r *Recorder) Record(rec roster.PlayerRecord) bool {
	res := FromRecord(r.Session(), rec)
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.Record(ctx, res); err != nil {
		r.mu.Lock()
		r.failures++
		r.mu.Unlock()
		r.logger.Printf("Results: Failed to record player %d: %v", rec.PlayerID, err)
		return false
	}
	r.logger.Printf("Results: Recorded player %d: %s", rec.PlayerID, res.Text)
	return true
}

// Failures is the number of results that could not be stored.
func (r *Recorder) Failures() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures
}

func (r *Recorder) Close() error {
	return r.sink.Close()
}
