package scoreboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/vo2max"
)

func TestFormatDurationMMSS(t *testing.T) {
	assert.Equal(t, "00:00", formatDurationMMSS(0))
	assert.Equal(t, "01:05", formatDurationMMSS(65*time.Second))
	assert.Equal(t, "17:59", formatDurationMMSS(17*time.Minute+59900*time.Millisecond))
}

func TestFormatTenths(t *testing.T) {
	assert.Equal(t, "9.0", formatTenths(9*time.Second))
	assert.Equal(t, "0.1", formatTenths(20*time.Millisecond))
	assert.Equal(t, "0.0", formatTenths(0))
}

func TestFrameText(t *testing.T) {
	idle := frameText(shuttle.Frame{Phase: shuttle.PhaseIdle, State: shuttle.State{Level: 1, Shuttle: 1, SpeedKmh: 8}})
	assert.Contains(t, idle, "press S to start")
	assert.NotContains(t, idle, "Test time")

	countdown := frameText(shuttle.Frame{Phase: shuttle.PhaseCountingDown, CountdownRemaining: 2300 * time.Millisecond, State: shuttle.State{Level: 1, Shuttle: 1}})
	assert.Contains(t, countdown, "Starting in [yellow]3[white]")

	running := frameText(shuttle.Frame{
		Phase:               shuttle.PhaseRunning,
		State:               shuttle.State{Level: 2, Shuttle: 3, SpeedKmh: 9, DistanceMeters: 180},
		RepetitionDuration:  8 * time.Second,
		RepetitionElapsed:   2 * time.Second,
		RepetitionRemaining: 6 * time.Second,
		TestElapsed:         83 * time.Second,
	})
	assert.Contains(t, running, "[yellow]3[white] / 8")
	assert.Contains(t, running, "[yellow]9.0[white] km/h")
	assert.Contains(t, running, "[yellow]180[white] m")
	assert.Contains(t, running, "[yellow]6.0[white] s left of 8.0 s")
	assert.Contains(t, running, "[yellow]01:23[white]")

	finished := frameText(shuttle.Frame{Phase: shuttle.PhaseFinished, State: shuttle.State{Level: 22, DistanceMeters: 4940}})
	assert.Contains(t, finished, "all levels completed")
}

func TestProgressBar(t *testing.T) {
	bar := progressBar(time.Second, 4*time.Second, 8)
	assert.Equal(t, 2, strings.Count(bar, "█"))
	assert.Equal(t, 6, strings.Count(bar, "░"))

	assert.Equal(t, 8, strings.Count(progressBar(10*time.Second, 4*time.Second, 8), "█"), "clamped")
	assert.Empty(t, progressBar(time.Second, 0, 8))
}

func completedRow(id int, name string, distance float64) PlayerRow {
	return PlayerRow{PlayerRecord: roster.PlayerRecord{
		PlayerID:         id,
		Name:             name,
		Status:           roster.StatusCompleted,
		CompletedLevel:   1,
		CompletedShuttle: int(distance / 20),
		DistanceMeters:   distance,
		SpeedKmh:         8,
	}}
}

func TestPlayerItemText(t *testing.T) {
	running := playerItemText(PlayerRow{PlayerRecord: roster.PlayerRecord{PlayerID: 4}, HeartRate: 150})
	assert.Contains(t, running, "Player 4")
	assert.Contains(t, running, "running")
	assert.Contains(t, running, "150")

	done := playerItemText(completedRow(2, "Ana", 60))
	assert.Contains(t, done, "Ana")
	assert.Contains(t, done, "Level 1 Shuttle 3 Distance 60.0 m")
}

func TestStatsText(t *testing.T) {
	assert.Contains(t, statsText(roster.Stats{Players: 3}, nil), "No results yet")

	rows := []PlayerRow{completedRow(1, "Ana", 60), completedRow(2, "", 100)}
	text := statsText(roster.Stats{
		Players:             3,
		Completed:           2,
		AverageSpeedKmh:     8,
		TotalDistanceMeters: 160,
		MeanDistanceMeters:  80,
		BestDistanceMeters:  100,
		BestPlayerID:        2,
	}, rows)
	assert.Contains(t, text, "[yellow]2[white] / 3")
	assert.Contains(t, text, "[yellow]8.00[white] km/h")
	assert.Contains(t, text, "[yellow]80.0[white] m")
	assert.Contains(t, text, "100[white] m (Player 2)")
}

func TestDistanceChart(t *testing.T) {
	assert.Contains(t, distanceChart(nil, 10), "fills in")

	rows := []PlayerRow{
		completedRow(1, "Ana", 50),
		{PlayerRecord: roster.PlayerRecord{PlayerID: 2, Name: "Ben"}},
		completedRow(3, "Cy", 100),
	}
	chart := distanceChart(rows, 10)
	lines := strings.Split(strings.TrimSpace(chart), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], "Cy")
		assert.Equal(t, 10, strings.Count(lines[0], "█"))
		assert.Contains(t, lines[1], "Ana")
		assert.Equal(t, 5, strings.Count(lines[1], "█"))
	}
	assert.NotContains(t, chart, "Ben")
}

func TestCalculatorText(t *testing.T) {
	empty := calculatorText(CalculatorState{Mode: vo2max.ModeLinearLevel})
	assert.Contains(t, empty, vo2max.ModeLinearLevel.Label())
	assert.Contains(t, empty, "press Calculate")

	bad := calculatorText(CalculatorState{Mode: vo2max.ModeLinearLevel, Error: vo2max.InvalidInputMessage})
	assert.Contains(t, bad, vo2max.InvalidInputMessage)

	res := vo2max.Result{Mode: vo2max.ModeLeger1988, VO2max: 41.6, Rating: "Average"}
	ok := calculatorText(CalculatorState{Mode: vo2max.ModeLeger1988, Result: &res})
	assert.Contains(t, ok, "41.60")
	assert.Contains(t, ok, "Average")

	for _, text := range []string{empty, bad, ok} {
		assert.Contains(t, text, "do not change the estimate")
	}
}

func TestPlayerForKey(t *testing.T) {
	id, ok := PlayerForKey('1')
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = PlayerForKey('0')
	assert.True(t, ok)
	assert.Equal(t, 10, id)

	_, ok = PlayerForKey('s')
	assert.False(t, ok)
}

func TestPageKeys(t *testing.T) {
	for _, info := range AllPages {
		page, ok := GetPageByKey(info.KeyBinding)
		assert.True(t, ok)
		assert.Equal(t, info.Page, page)

		for _, k := range []rune{KeyStart, KeyStop, KeyExport, KeyQuit} {
			assert.NotEqual(t, k, info.KeyBinding, "page key %c shadows a control key", k)
		}
	}
	_, ok := GetPageByKey('z')
	assert.False(t, ok)
}
