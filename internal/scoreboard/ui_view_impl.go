package scoreboard

import "github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"

// UIViewImpl defines the interface for framework-specific UI implementations
type UIViewImpl interface {
	// Initialize is called after construction to set up framework-specific widgets
	// controller is used to handle UI events
	Initialize(controller *UIController)

	// SetupKeyboardHandlers sets up keyboard event handlers
	SetupKeyboardHandlers(controller *UIController)

	// Run starts the UI framework and blocks until it exits
	Run() error

	// Stop stops the UI framework
	Stop()

	// Draw refreshes/redraws the UI
	Draw() error

	// --- Page Management ---

	SetPage(page Page)
	GetCurrentPage() Page

	// --- Log View (shared across pages) ---

	GetLogViewHeight() int
	ClearLogView()
	WriteLogLine(line string) error

	// --- Dashboard ---

	// UpdateFrame shows level, shuttle, speed, time and distance
	UpdateFrame(frame shuttle.Frame)

	// SetPlayers updates the players list and the statistics page
	SetPlayers(players PlayersSnapshot)

	// SetResults replaces the results log
	SetResults(lines []string)

	// --- Calculator ---

	UpdateCalculator(state CalculatorState)
}
