package scoreboard

// Page is one screen of the scoreboard.
type Page int

const (
	PageDashboard  Page = iota // Test, players and results
	PageStats                  // Statistics and distance chart
	PageCalculator             // VO2max calculator
	PageHelp                   // How to run a test
	PageAbout                  // Version and credits
)

// PageInfo contains display information for a page
type PageInfo struct {
	Page        Page
	Name        string // tview page name
	DisplayName string
	KeyBinding  rune
}

// AllPages defines all pages in menu order
var AllPages = []PageInfo{
	{Page: PageDashboard, Name: "dashboard", DisplayName: "Dashboard", KeyBinding: 'd'},
	{Page: PageStats, Name: "stats", DisplayName: "Statistics", KeyBinding: 't'},
	{Page: PageCalculator, Name: "calculator", DisplayName: "VO2max Calculator", KeyBinding: 'v'},
	{Page: PageHelp, Name: "help", DisplayName: "Help", KeyBinding: 'h'},
	{Page: PageAbout, Name: "about", DisplayName: "About", KeyBinding: 'a'},
}

// GetPageByKey returns the page for a given key binding
func GetPageByKey(key rune) (Page, bool) {
	for _, info := range AllPages {
		if info.KeyBinding == key {
			return info.Page, true
		}
	}
	return 0, false
}

// GetPageInfo returns the info for a given page
func GetPageInfo(page Page) (PageInfo, bool) {
	for _, info := range AllPages {
		if info.Page == page {
			return info, true
		}
	}
	return PageInfo{}, false
}

// Test control keys, valid on every page except the calculator form.
const (
	KeyStart  = 's'
	KeyStop   = 'x'
	KeyExport = 'e'
	KeyQuit   = 'q'
)

// PlayerForKey maps '1'..'9' to players 1..9 and '0' to player 10.
func PlayerForKey(key rune) (int, bool) {
	switch {
	case key >= '1' && key <= '9':
		return int(key - '0'), true
	case key == '0':
		return 10, true
	default:
		return 0, false
	}
}

const (
	maxLogLines    = 1000
	maxResultLines = 500
	chartBarWidth  = 40
)

const aboutText = `
  [yellow]Shuttle Run Scoreboard[white]

  Paces the 20 m multi-stage fitness test for a group of players:
  21 levels, 247 shuttles, audio cue at the start of every shuttle.

  Results are logged on screen and written to the configured sinks
  (CSV, JSON lines, SQLite). A read-only HTTP API and Prometheus
  metrics are available when http.addr is set.
`

const helpText = `
  [yellow]Running a test[white]

  1. Line players up on the start line.
  2. Press [yellow]S[white] to start. A countdown plays, then the first shuttle cue.
  3. Players run 20 m and must reach the line before the next cue.
     A double cue marks a new level, which is faster.
  4. When a player drops out, press their number ([yellow]1[white]-[yellow]9[white], [yellow]0[white] for 10)
     or highlight them and press [yellow]Enter[white]. The last completed shuttle is recorded.
  5. Press [yellow]X[white] to stop the test. Players can still be completed afterwards.
  6. Press [yellow]E[white] to export every player to a CSV file.

  [yellow]Pages[white]

  [yellow]D[white] Dashboard   [yellow]T[white] Statistics   [yellow]V[white] VO2max calculator   [yellow]H[white] Help   [yellow]A[white] About
  [yellow]Tab[white] cycles focus, [yellow]Esc[white] goes back to the dashboard, or quits from it.

  [yellow]VO2max[white]

  Enter age, sex, level and shuttle reached. The shuttle must fit the level
  but neither estimator uses it. Two estimators are offered:
  the linear level fit and Léger (1988), which uses the level's speed.
  They disagree; compare players with the same one.
`
