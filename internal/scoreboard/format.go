package scoreboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/protocol"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
)

// formatDurationMMSS formats a duration as MM:SS
func formatDurationMMSS(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// formatTenths formats a duration as seconds with one decimal, rounded up so
// the display never shows 0.0 while time remains.
func formatTenths(d time.Duration) string {
	tenths := math.Ceil(d.Seconds() * 10)
	return fmt.Sprintf("%.1f", tenths/10)
}

func phaseText(p shuttle.Phase) string {
	switch p {
	case shuttle.PhaseIdle:
		return "[gray]Ready - press S to start[white]"
	case shuttle.PhaseCountingDown:
		return "[yellow]Get ready[white]"
	case shuttle.PhaseRunning:
		return "[green]Running[white]"
	case shuttle.PhaseFinished:
		return "[green]Protocol completed[white]"
	case shuttle.PhaseStopped:
		return "[red]Stopped[white]"
	default:
		return p.String()
	}
}

// frameText renders the test panel.
func frameText(f shuttle.Frame) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s\n\n", phaseText(f.Phase))

	if f.Phase == shuttle.PhaseCountingDown {
		fmt.Fprintf(&b, "  Starting in [yellow]%d[white]\n\n", int(math.Ceil(f.CountdownRemaining.Seconds())))
	}

	s := f.State
	if _, ok := protocol.Lookup(s.Level); ok {
		fmt.Fprintf(&b, "  Level:     [yellow]%d[white]\n", s.Level)
		fmt.Fprintf(&b, "  Shuttle:   [yellow]%d[white] / %d\n", s.Shuttle, s.ShuttlesInLevel())
	} else {
		fmt.Fprintf(&b, "  Level:     [yellow]%d[white] (all levels completed)\n", protocol.MaxLevel())
		b.WriteString("  Shuttle:   -\n")
	}
	fmt.Fprintf(&b, "  Speed:     [yellow]%.1f[white] km/h\n", s.SpeedKmh)
	fmt.Fprintf(&b, "  Distance:  [yellow]%.0f[white] m\n\n", s.DistanceMeters)

	if f.Phase == shuttle.PhaseRunning {
		fmt.Fprintf(&b, "  Shuttle time:  [yellow]%s[white] s left of %s s\n", formatTenths(f.RepetitionRemaining), formatTenths(f.RepetitionDuration))
		b.WriteString("  " + progressBar(f.RepetitionElapsed, f.RepetitionDuration, 30) + "\n")
	}
	if f.Phase != shuttle.PhaseIdle {
		fmt.Fprintf(&b, "  Test time:     [yellow]%s[white]\n", formatDurationMMSS(f.TestElapsed))
	}
	return b.String()
}

func progressBar(elapsed, total time.Duration, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := int(float64(width) * float64(elapsed) / float64(total))
	filled = max(0, min(width, filled))
	return "[green]" + strings.Repeat("█", filled) + "[gray]" + strings.Repeat("░", width-filled) + "[white]"
}

// playerItemText is one line of the players list.
func playerItemText(row PlayerRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%2d. %-14s", row.PlayerID, row.Label())
	if row.Completed() {
		fmt.Fprintf(&b, " [green]✓[white] %s", row.ResultText())
	} else {
		b.WriteString(" [gray]running[white]")
	}
	if row.HeartRate > 0 {
		fmt.Fprintf(&b, "  [red]♥[white] %d", row.HeartRate)
	}
	if row.PeakHeartRate > 0 {
		fmt.Fprintf(&b, " [gray](peak %d)[white]", row.PeakHeartRate)
	}
	return b.String()
}

// statsText renders the statistics panel.
func statsText(s roster.Stats, rows []PlayerRow) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Players completed:  [yellow]%d[white] / %d\n\n", s.Completed, s.Players)
	if s.Completed == 0 {
		b.WriteString("  [gray]No results yet.[white]\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  Average speed:      [yellow]%.2f[white] km/h\n", s.AverageSpeedKmh)
	fmt.Fprintf(&b, "  Total distance:     [yellow]%.0f[white] m\n", s.TotalDistanceMeters)
	fmt.Fprintf(&b, "  Mean distance:      [yellow]%.1f[white] m\n", s.MeanDistanceMeters)
	best := fmt.Sprintf("Player %d", s.BestPlayerID)
	for _, r := range rows {
		if r.PlayerID == s.BestPlayerID {
			best = r.Label()
		}
	}
	fmt.Fprintf(&b, "  Best distance:      [yellow]%.0f[white] m (%s)\n", s.BestDistanceMeters, best)
	return b.String()
}

// distanceChart draws one horizontal bar per completed player, longest first,
// scaled so the best distance fills width.
func distanceChart(rows []PlayerRow, width int) string {
	var done []PlayerRow
	for _, r := range rows {
		if r.Completed() {
			done = append(done, r)
		}
	}
	if len(done) == 0 {
		return "\n  [gray]The chart fills in as players complete.[white]\n"
	}
	sort.SliceStable(done, func(i, j int) bool {
		return done[i].DistanceMeters > done[j].DistanceMeters
	})

	top := done[0].DistanceMeters
	var b strings.Builder
	b.WriteString("\n")
	for _, r := range done {
		n := 0
		if top > 0 {
			n = int(math.Round(r.DistanceMeters / top * float64(width)))
		}
		fmt.Fprintf(&b, "  %-14s [blue]%s[white] %.0f m\n", r.Label(), strings.Repeat("█", n), r.DistanceMeters)
	}
	return b.String()
}

// shuttlesNote explains the Shuttles field: both formulas work from the level
// reached, the shuttle count is only checked against that level.
const shuttlesNote = "Shuttles must fit the level but do not change the estimate."

// calculatorText renders the calculator result panel.
func calculatorText(s CalculatorState) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Formula: [yellow]%s[white]\n\n", s.Mode.Label())
	switch {
	case s.Error != "":
		fmt.Fprintf(&b, "  [red]%s[white]\n", s.Error)
	case s.Result != nil:
		fmt.Fprintf(&b, "  Estimated VO2max:  [yellow]%.2f[white] ml/kg/min\n", s.Result.VO2max)
		fmt.Fprintf(&b, "  Rating:            [yellow]%s[white]\n", s.Result.Rating)
	default:
		b.WriteString("  [gray]Fill in the form and press Calculate.[white]\n")
	}
	b.WriteString("\n  [gray]" + shuttlesNote + "[white]\n")
	return b.String()
}
