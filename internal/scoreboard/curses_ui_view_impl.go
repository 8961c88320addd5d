package scoreboard

import (
	"fmt"
	"log"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/shuttle"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/vo2max"
)

// Calculator form labels
const (
	fieldAge      = "Age"
	fieldSex      = "Sex"
	fieldLevel    = "Level"
	fieldShuttles = "Shuttles (not used)"
	fieldFormula  = "Formula"
)

var sexOptions = []string{"Male", "Female"}

// CursesUIViewImpl implements UIViewImpl using tview (curses-based terminal UI)
type CursesUIViewImpl struct {
	logger      *log.Logger
	app         *tview.Application
	model       *UIModel
	currentPage Page

	// Root container that holds all pages
	pages *tview.Pages

	// Shared components (visible on all pages)
	logView  *tview.TextView
	mainFlex *tview.Flex
	menuBar  *tview.TextView

	// Dashboard
	dashboardFlex       *tview.Flex
	dashboardTabWidgets []tview.Primitive
	testPanel           *tview.TextView
	playerList          *tview.List
	resultsPanel        *tview.TextView

	// Statistics
	statsFlex       *tview.Flex
	statsTabWidgets []tview.Primitive
	statsPanel      *tview.TextView
	chartPanel      *tview.TextView

	// Calculator
	calculatorFlex       *tview.Flex
	calculatorTabWidgets []tview.Primitive
	calculatorForm       *tview.Form
	calculatorResult     *tview.TextView

	// Help and About
	helpView  *tview.TextView
	aboutView *tview.TextView
}

func NewCursesUIView(logger *log.Logger, app *tview.Application, model *UIModel) *CursesUIViewImpl {
	if logger == nil {
		panic("CursesUIViewImpl: logger cannot be nil")
	}
	if app == nil {
		panic("CursesUIViewImpl: app cannot be nil")
	}
	if model == nil {
		panic("CursesUIViewImpl: model cannot be nil")
	}
	return &CursesUIViewImpl{
		logger:      logger,
		app:         app,
		model:       model,
		currentPage: -1,
	}
}

// Initialize sets up the tview widgets
func (ui *CursesUIViewImpl) Initialize(controller *UIController) {
	// Don't use SetChangedFunc with app.Draw() - it can hang during shutdown.
	// BaseUIView's listeners call Draw() after updating content.
	ui.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	ui.logView.SetBorder(true).SetTitle(" Logs ")

	ui.menuBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	ui.pages = tview.NewPages()

	ui.initDashboardPage(controller)
	ui.initStatsPage()
	ui.initCalculatorPage(controller)
	ui.helpView = ui.newStaticPage(" Help ", helpText)
	ui.aboutView = ui.newStaticPage(" About ", aboutText)

	ui.pages.AddPage(pageName(PageDashboard), ui.dashboardFlex, true, true)
	ui.pages.AddPage(pageName(PageStats), ui.statsFlex, true, false)
	ui.pages.AddPage(pageName(PageCalculator), ui.calculatorFlex, true, false)
	ui.pages.AddPage(pageName(PageHelp), ui.helpView, true, false)
	ui.pages.AddPage(pageName(PageAbout), ui.aboutView, true, false)

	content := tview.NewFlex().
		AddItem(ui.pages, 0, 2, true).
		AddItem(ui.logView, 0, 1, false)

	ui.mainFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.menuBar, 1, 0, false).
		AddItem(content, 0, 1, true)
}

func pageName(page Page) string {
	info, _ := GetPageInfo(page)
	return info.Name
}

func (ui *CursesUIViewImpl) initDashboardPage(controller *UIController) {
	ui.testPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.testPanel.SetBorder(true).SetTitle(" Test ")
	ui.testPanel.SetText(frameText(shuttle.Frame{Phase: shuttle.PhaseIdle}))

	ui.playerList = tview.NewList().
		ShowSecondaryText(false).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			players := ui.model.GetPlayers().Rows
			if index < 0 || index >= len(players) {
				return
			}
			controller.CompletePlayer(players[index].PlayerID)
		})
	ui.playerList.SetBorder(true).SetTitle(" Players (Enter or 1-9/0 to complete) ")

	ui.resultsPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	ui.resultsPanel.SetBorder(true).SetTitle(" Results ")

	ui.dashboardTabWidgets = append(ui.dashboardTabWidgets, ui.playerList, ui.resultsPanel)

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.testPanel, 14, 0, false).
		AddItem(ui.resultsPanel, 0, 1, false)

	ui.dashboardFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftColumn, 0, 1, false).
		AddItem(ui.playerList, 0, 1, true)
}

func (ui *CursesUIViewImpl) initStatsPage() {
	ui.statsPanel = tview.NewTextView().
		SetDynamicColors(true)
	ui.statsPanel.SetBorder(true).SetTitle(" Statistics ")

	ui.chartPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	ui.chartPanel.SetBorder(true).SetTitle(" Distance by player ")

	ui.statsTabWidgets = append(ui.statsTabWidgets, ui.chartPanel)

	ui.statsFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.statsPanel, 10, 0, false).
		AddItem(ui.chartPanel, 0, 1, true)
}

func (ui *CursesUIViewImpl) initCalculatorPage(controller *UIController) {
	modes := make([]string, len(vo2max.Modes))
	current := 0
	mode := ui.model.GetCalculatorState().Mode
	for i, m := range vo2max.Modes {
		modes[i] = m.Label()
		if m == mode {
			current = i
		}
	}

	ui.calculatorResult = tview.NewTextView().
		SetDynamicColors(true)
	ui.calculatorResult.SetBorder(true).SetTitle(" Result ")

	ui.calculatorForm = tview.NewForm().
		AddInputField(fieldAge, "", 6, tview.InputFieldInteger, nil).
		AddDropDown(fieldSex, sexOptions, 0, nil).
		AddInputField(fieldLevel, "", 6, tview.InputFieldInteger, nil).
		AddInputField(fieldShuttles, "", 6, tview.InputFieldInteger, nil).
		AddDropDown(fieldFormula, modes, current, nil)
	ui.calculatorForm.AddButton("Calculate", func() {
		ui.submitCalculator(controller)
	})
	ui.calculatorForm.AddButton("Fill from player", func() {
		ui.fillCalculatorFromPlayer()
	})
	ui.calculatorForm.SetBorder(true).SetTitle(" VO2max Calculator ")

	ui.calculatorTabWidgets = append(ui.calculatorTabWidgets, ui.calculatorForm)

	ui.calculatorFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.calculatorForm, 0, 1, true).
		AddItem(ui.calculatorResult, 0, 1, false)
}

func (ui *CursesUIViewImpl) formText(label string) string {
	if field, ok := ui.calculatorForm.GetFormItemByLabel(label).(*tview.InputField); ok {
		return field.GetText()
	}
	return ""
}

func (ui *CursesUIViewImpl) formOption(label string) (int, string) {
	if dd, ok := ui.calculatorForm.GetFormItemByLabel(label).(*tview.DropDown); ok {
		return dd.GetCurrentOption()
	}
	return -1, ""
}

func (ui *CursesUIViewImpl) submitCalculator(controller *UIController) {
	_, sex := ui.formOption(fieldSex)
	idx, _ := ui.formOption(fieldFormula)
	mode := vo2max.ModeLinearLevel
	if idx >= 0 && idx < len(vo2max.Modes) {
		mode = vo2max.Modes[idx]
	}
	controller.CalculateVO2max(mode, ui.formText(fieldAge), sex, ui.formText(fieldLevel), ui.formText(fieldShuttles))
}

// fillCalculatorFromPlayer copies the highlighted player's result into the form.
func (ui *CursesUIViewImpl) fillCalculatorFromPlayer() {
	players := ui.model.GetPlayers().Rows
	idx := ui.playerList.GetCurrentItem()
	if idx < 0 || idx >= len(players) || !players[idx].Completed() {
		ui.logger.Printf("UI: Highlight a completed player on the dashboard first")
		return
	}
	p := players[idx]
	if field, ok := ui.calculatorForm.GetFormItemByLabel(fieldLevel).(*tview.InputField); ok {
		field.SetText(fmt.Sprint(p.CompletedLevel))
	}
	if field, ok := ui.calculatorForm.GetFormItemByLabel(fieldShuttles).(*tview.InputField); ok {
		field.SetText(fmt.Sprint(p.CompletedShuttle))
	}
}

func (ui *CursesUIViewImpl) newStaticPage(title, text string) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetText(text)
	tv.SetBorder(true).SetTitle(title)
	return tv
}

func (ui *CursesUIViewImpl) updateMenuBar() {
	var parts []string
	for _, info := range AllPages {
		if info.Page == ui.currentPage {
			parts = append(parts, fmt.Sprintf("[black:yellow] %c %s [-:-]", info.KeyBinding-'a'+'A', info.DisplayName))
		} else {
			parts = append(parts, fmt.Sprintf("[yellow]%c[white] %s", info.KeyBinding-'a'+'A', info.DisplayName))
		}
	}
	parts = append(parts, "[yellow]S[white] Start", "[yellow]X[white] Stop", "[yellow]E[white] Export", "[yellow]Esc[white] Back/Quit")
	ui.menuBar.SetText(strings.Join(parts, "  "))
}

// SetPage switches the UI to the specified page
func (ui *CursesUIViewImpl) SetPage(page Page) {
	if ui.currentPage == page {
		return
	}
	ui.currentPage = page
	ui.pages.SwitchToPage(pageName(page))
	ui.updateMenuBar()
	ui.setFocusForCurrentPage()
}

func (ui *CursesUIViewImpl) GetCurrentPage() Page {
	return ui.currentPage
}

func (ui *CursesUIViewImpl) getTabWidgetsForCurrentPage() []tview.Primitive {
	switch ui.currentPage {
	case PageDashboard:
		return ui.dashboardTabWidgets
	case PageStats:
		return ui.statsTabWidgets
	case PageCalculator:
		return ui.calculatorTabWidgets
	case PageHelp:
		return []tview.Primitive{ui.helpView}
	case PageAbout:
		return []tview.Primitive{ui.aboutView}
	default:
		return nil
	}
}

func (ui *CursesUIViewImpl) setFocusForCurrentPage() {
	if widgets := ui.getTabWidgetsForCurrentPage(); len(widgets) > 0 {
		ui.app.SetFocus(widgets[0])
	}
}

// SetupKeyboardHandlers sets up keyboard event handlers
func (ui *CursesUIViewImpl) SetupKeyboardHandlers(controller *UIController) {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			controller.OnEscapeKey()
			return nil
		}

		// The calculator form needs every other key for its fields
		if ui.currentPage == PageCalculator {
			return event
		}

		if event.Key() == tcell.KeyTab {
			widgets := ui.getTabWidgetsForCurrentPage()
			for i, w := range widgets {
				if w.HasFocus() {
					ui.app.SetFocus(widgets[(i+1)%len(widgets)])
					break
				}
			}
			return nil
		}

		if event.Key() != tcell.KeyRune {
			return event
		}
		r := event.Rune()
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}

		if page, ok := GetPageByKey(r); ok {
			controller.OnPageChange(page)
			return nil
		}
		if id, ok := PlayerForKey(r); ok {
			controller.CompletePlayer(id)
			return nil
		}

		switch r {
		case KeyStart:
			controller.StartTest()
		case KeyStop:
			controller.StopTest()
		case KeyExport:
			if _, err := controller.ExportResults(); err != nil {
				ui.logger.Printf("UI: Export failed: %v", err)
			}
		case KeyQuit:
			controller.Quit()
		default:
			return event
		}
		return nil
	})
}

func (ui *CursesUIViewImpl) GetLogViewHeight() int {
	_, _, _, height := ui.logView.GetInnerRect()
	return height
}

func (ui *CursesUIViewImpl) ClearLogView() {
	ui.logView.Clear()
}

func (ui *CursesUIViewImpl) WriteLogLine(line string) error {
	_, err := fmt.Fprint(ui.logView, tview.Escape(line))
	return err
}

func (ui *CursesUIViewImpl) UpdateFrame(frame shuttle.Frame) {
	ui.testPanel.SetText(frameText(frame))
}

// SetPlayers refreshes the players list, keeping the highlighted row
func (ui *CursesUIViewImpl) SetPlayers(players PlayersSnapshot) {
	current := ui.playerList.GetCurrentItem()
	if ui.playerList.GetItemCount() == len(players.Rows) {
		for i, row := range players.Rows {
			ui.playerList.SetItemText(i, playerItemText(row), "")
		}
	} else {
		ui.playerList.Clear()
		for _, row := range players.Rows {
			ui.playerList.AddItem(playerItemText(row), "", 0, nil)
		}
		if current < len(players.Rows) {
			ui.playerList.SetCurrentItem(current)
		}
	}

	ui.statsPanel.SetText(statsText(players.Stats, players.Rows))
	ui.chartPanel.SetText(distanceChart(players.Rows, chartBarWidth))
}

func (ui *CursesUIViewImpl) SetResults(lines []string) {
	ui.resultsPanel.Clear()
	for _, line := range lines {
		fmt.Fprintln(ui.resultsPanel, tview.Escape(line))
	}
	ui.resultsPanel.ScrollToEnd()
}

func (ui *CursesUIViewImpl) UpdateCalculator(state CalculatorState) {
	ui.calculatorResult.SetText(calculatorText(state))
}

func (ui *CursesUIViewImpl) Draw() error {
	ui.app.Draw()
	return nil
}

// Run starts the UI and blocks until it exits
func (ui *CursesUIViewImpl) Run() error {
	// SetRoot must be called before setting focus, otherwise focus may be reset
	ui.app.SetRoot(ui.mainFlex, true)
	ui.setFocusForCurrentPage()
	return ui.app.Run()
}

func (ui *CursesUIViewImpl) Stop() {
	ui.app.Stop()
}
