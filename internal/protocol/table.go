// Package protocol holds the fixed level table of the 20m multi-stage
// fitness test and the arithmetic derived from it.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ShuttleMeters is the length of one repetition.
const ShuttleMeters = 20.0

// ErrInvalidSpeed is returned for non-positive speeds.
var ErrInvalidSpeed = errors.New("speed must be positive")

// ErrUnknownLevel is returned for levels outside the table.
var ErrUnknownLevel = errors.New("level outside protocol table")

// Level describes one stage of the test.
type Level struct {
	Number   int     `json:"level"`
	Shuttles int     `json:"shuttles"`
	SpeedKmh float64 `json:"speed_kmh"`
}

// levels is indexed by level number - 1.
var levels = [...]Level{
	{Number: 1, Shuttles: 7, SpeedKmh: 8.0},
	{Number: 2, Shuttles: 8, SpeedKmh: 9.0},
	{Number: 3, Shuttles: 8, SpeedKmh: 9.5},
	{Number: 4, Shuttles: 9, SpeedKmh: 10.0},
	{Number: 5, Shuttles: 9, SpeedKmh: 10.5},
	{Number: 6, Shuttles: 10, SpeedKmh: 11.0},
	{Number: 7, Shuttles: 10, SpeedKmh: 11.5},
	{Number: 8, Shuttles: 11, SpeedKmh: 12.0},
	{Number: 9, Shuttles: 11, SpeedKmh: 12.5},
	{Number: 10, Shuttles: 11, SpeedKmh: 13.0},
	{Number: 11, Shuttles: 12, SpeedKmh: 13.5},
	{Number: 12, Shuttles: 12, SpeedKmh: 14.0},
	{Number: 13, Shuttles: 13, SpeedKmh: 14.5},
	{Number: 14, Shuttles: 13, SpeedKmh: 15.0},
	{Number: 15, Shuttles: 13, SpeedKmh: 15.5},
	{Number: 16, Shuttles: 14, SpeedKmh: 16.0},
	{Number: 17, Shuttles: 14, SpeedKmh: 16.5},
	{Number: 18, Shuttles: 15, SpeedKmh: 17.0},
	{Number: 19, Shuttles: 15, SpeedKmh: 17.5},
	{Number: 20, Shuttles: 16, SpeedKmh: 18.0},
	{Number: 21, Shuttles: 16, SpeedKmh: 18.5},
}

// MaxLevel is the last level of the protocol.
func MaxLevel() int {
	return len(levels)
}

// Levels returns a copy of the whole table.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels[:])
	return out
}

// Lookup returns the table entry for level.
func Lookup(level int) (Level, bool) {
	if level < 1 || level > len(levels) {
		return Level{}, false
	}
	return levels[level-1], true
}

// MustLookup is Lookup for levels known to be valid.
func MustLookup(level int) Level {
	l, ok := Lookup(level)
	if !ok {
		panic(fmt.Sprintf("protocol: level %d outside 1..%d", level, len(levels)))
	}
	return l
}

// DurationForSpeed returns how long one 20m shuttle takes at speedKmh.
func DurationForSpeed(speedKmh float64) (time.Duration, error) {
	if speedKmh <= 0 {
		return 0, fmt.Errorf("%w: %.2f km/h", ErrInvalidSpeed, speedKmh)
	}
	seconds := ShuttleMeters * 3600 / (speedKmh * 1000)
	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}

// CumulativeShuttles returns the number of shuttles completed by someone who
// finished `shuttle` repetitions of `level` (0 <= shuttle <= reps(level)).
func CumulativeShuttles(level, shuttle int) (int, error) {
	l, ok := Lookup(level)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	if shuttle < 0 || shuttle > l.Shuttles {
		return 0, fmt.Errorf("shuttle %d outside 0..%d for level %d", shuttle, l.Shuttles, level)
	}
	total := shuttle
	for _, prev := range levels[:level-1] {
		total += prev.Shuttles
	}
	return total, nil
}

// DistanceAt is CumulativeShuttles expressed in meters.
func DistanceAt(level, shuttle int) (float64, error) {
	n, err := CumulativeShuttles(level, shuttle)
	if err != nil {
		return 0, err
	}
	return float64(n) * ShuttleMeters, nil
}

// TotalShuttles is the number of shuttles in the complete protocol.
func TotalShuttles() int {
	total := 0
	for _, l := range levels {
		total += l.Shuttles
	}
	return total
}

// TotalDuration is the running time of the complete protocol.
func TotalDuration() time.Duration {
	var total time.Duration
	for _, l := range levels {
		d, _ := DurationForSpeed(l.SpeedKmh)
		total += time.Duration(l.Shuttles) * d
	}
	return total
}
