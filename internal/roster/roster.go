// Package roster tracks which players have dropped out of the test and where.
package roster

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/events"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/protocol"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
)

// ErrUnknownPlayer is returned for ids outside 1..Len().
var ErrUnknownPlayer = errors.New("unknown player")

type Status int

const (
	StatusInProgress Status = iota
	StatusCompleted
)

func (s Status) String() string {
	if s == StatusCompleted {
		return "completed"
	}
	return "in_progress"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PlayerRecord is one participant. The completion fields are a snapshot of
// the test at the moment the player was marked complete.
type PlayerRecord struct {
	PlayerID         int       `json:"player_id"`
	Name             string    `json:"name"`
	Status           Status    `json:"status"`
	CompletedLevel   int       `json:"completed_level"`
	CompletedShuttle int       `json:"completed_shuttle"`
	DistanceMeters   float64   `json:"distance_m"`
	SpeedKmh         float64   `json:"speed_kmh"`
	CompletedAt      time.Time `json:"completed_at,omitzero"`
	PeakHeartRate    int       `json:"peak_heart_rate,omitempty"`
}

func (r PlayerRecord) Completed() bool {
	return r.Status == StatusCompleted
}

// Label is the player's name, or "Player N" when unnamed.
func (r PlayerRecord) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("Player %d", r.PlayerID)
}

// ResultText is the one-line result shown in the log and exported to CSV.
func (r PlayerRecord) ResultText() string {
	return fmt.Sprintf("Level %d Shuttle %d Distance %.1f m", r.CompletedLevel, r.CompletedShuttle, r.DistanceMeters)
}

// LastCompleted converts the engine's position (the repetition being run)
// into the last repetition actually finished. A player stopping on the first
// repetition of a level finished the whole previous level.
func LastCompleted(state shuttle.State) (level, shuttleNo int) {
	level, shuttleNo = state.Level, state.Shuttle-1
	if shuttleNo == 0 && level > 1 {
		level--
		shuttleNo = protocol.MustLookup(level).Shuttles
	}
	return level, shuttleNo
}

// Stats summarises completed players.
type Stats struct {
	Players             int     `json:"players"`
	Completed           int     `json:"completed"`
	AverageSpeedKmh     float64 `json:"average_speed_kmh"`
	TotalDistanceMeters float64 `json:"total_distance_m"`
	MeanDistanceMeters  float64 `json:"mean_distance_m"`
	BestDistanceMeters  float64 `json:"best_distance_m"`
	BestPlayerID        int     `json:"best_player_id,omitempty"`
}

// Roster holds one record per player, ids starting at 1.
type Roster struct {
	mu          sync.RWMutex
	records     []PlayerRecord
	now         func() time.Time
	completions *events.Hooks[PlayerRecord]
}

// NewRoster creates a roster with one in-progress record per name.
// Empty names are allowed and render as "Player N".
func NewRoster(names []string) *Roster {
	r := &Roster{
		records:     make([]PlayerRecord, len(names)),
		now:         time.Now,
		completions: events.NewHooks[PlayerRecord](),
	}
	for i, name := range names {
		r.records[i] = PlayerRecord{PlayerID: i + 1, Name: name}
	}
	return r
}

// NewRosterOfSize creates n unnamed players.
func NewRosterOfSize(n int) *Roster {
	return NewRoster(make([]string, n))
}

// OnComplete registers fn for every first completion. fn runs synchronously
// on the caller of MarkComplete.
func (r *Roster) OnComplete(fn func(PlayerRecord)) func() {
	return r.completions.Add(fn)
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// MarkComplete snapshots state into the player's record. Only the first call
// records anything; later calls return the existing record and false.
func (r *Roster) MarkComplete(playerID int, state shuttle.State) (PlayerRecord, bool, error) {
	r.mu.Lock()
	idx, err := r.index(playerID)
	if err != nil {
		r.mu.Unlock()
		return PlayerRecord{}, false, err
	}
	rec := &r.records[idx]
	if rec.Completed() {
		out := *rec
		r.mu.Unlock()
		return out, false, nil
	}

	rec.CompletedLevel, rec.CompletedShuttle = LastCompleted(state)
	rec.DistanceMeters = state.DistanceMeters
	// no speed until a repetition has been finished
	if l, ok := protocol.Lookup(rec.CompletedLevel); ok && rec.CompletedShuttle > 0 {
		rec.SpeedKmh = l.SpeedKmh
	}
	rec.CompletedAt = r.now()
	rec.Status = StatusCompleted
	out := *rec
	r.mu.Unlock()

	r.completions.Fire(out)
	return out, true, nil
}

// SetPeakHeartRate raises the player's peak heart rate to bpm. Readings for
// players who already finished are ignored.
func (r *Roster) SetPeakHeartRate(playerID, bpm int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, err := r.index(playerID)
	if err != nil {
		return err
	}
	rec := &r.records[idx]
	if !rec.Completed() && bpm > rec.PeakHeartRate {
		rec.PeakHeartRate = bpm
	}
	return nil
}

// Rename changes a player's display name.
func (r *Roster) Rename(playerID int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, err := r.index(playerID)
	if err != nil {
		return err
	}
	r.records[idx].Name = name
	return nil
}

// Reset puts every player back in progress for a new test, keeping names.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		r.records[i] = PlayerRecord{PlayerID: r.records[i].PlayerID, Name: r.records[i].Name}
	}
}

func (r *Roster) Record(playerID int) (PlayerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, err := r.index(playerID)
	if err != nil {
		return PlayerRecord{}, err
	}
	return r.records[idx], nil
}

// Records returns a copy of every record in id order.
func (r *Roster) Records() []PlayerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PlayerRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Completed returns only the completed records, in id order.
func (r *Roster) Completed() []PlayerRecord {
	var out []PlayerRecord
	for _, rec := range r.Records() {
		if rec.Completed() {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.records))
	for i, rec := range r.records {
		names[i] = rec.Name
	}
	return names
}

func (r *Roster) Stats() Stats {
	records := r.Records()
	s := Stats{Players: len(records)}
	var speedSum float64
	var speeds int
	for _, rec := range records {
		if !rec.Completed() {
			continue
		}
		s.Completed++
		if rec.SpeedKmh > 0 {
			speedSum += rec.SpeedKmh
			speeds++
		}
		s.TotalDistanceMeters += rec.DistanceMeters
		if s.BestPlayerID == 0 || rec.DistanceMeters > s.BestDistanceMeters {
			s.BestDistanceMeters = rec.DistanceMeters
			s.BestPlayerID = rec.PlayerID
		}
	}
	if speeds > 0 {
		s.AverageSpeedKmh = speedSum / float64(speeds)
	}
	if s.Completed > 0 {
		s.MeanDistanceMeters = s.TotalDistanceMeters / float64(s.Completed)
	}
	return s
}

// index must be called with mu held.
func (r *Roster) index(playerID int) (int, error) {
	if playerID < 1 || playerID > len(r.records) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}
	return playerID - 1, nil
}
