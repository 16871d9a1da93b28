// Package tui is the terminal front end and the host-integration layer in
// one: every key or mouse event doubles as an activity signal, and terminal
// focus reports feed the pause evaluator.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avosk/blendtime/internal/export"
	"github.com/avosk/blendtime/internal/heartbeat"
	"github.com/avosk/blendtime/internal/settings"
	"github.com/avosk/blendtime/internal/store"
	"github.com/avosk/blendtime/internal/tracker"
)

// Input events closer together than this collapse into one activity pulse.
// Mouse motion in particular floods the event loop.
const pulseThrottle = 100 * time.Millisecond

// Syncer triggers a manual offline flush. Optional.
type Syncer interface {
	SyncOffline() (bool, string)
}

// App is the root Bubble Tea model.
type App struct {
	cfg     *settings.Settings
	store   *store.Store
	tracker *tracker.Tracker
	queue   *heartbeat.Queue
	syncer  Syncer

	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	lastPulse  time.Time
	lastMouseX int
	lastMouseY int

	dashboard dashboardModel
	reports   reportsModel
	settings  settingsModel

	help   help.Model
	status string
}

func NewApp(cfg *settings.Settings, s *store.Store, tr *tracker.Tracker, q *heartbeat.Queue, syncer Syncer) App {
	h := help.New()
	h.ShowAll = false

	return App{
		cfg:        cfg,
		store:      s,
		tracker:    tr,
		queue:      q,
		syncer:     syncer,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(s, tr, q),
		reports:    newReportsModel(s),
		settings:   newSettingsModel(cfg),
		help:       h,
		lastMouseX: -1,
		lastMouseY: -1,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// pulse forwards user input to the tracker, collapsing event floods.
func (a *App) pulse() {
	now := time.Now()
	if now.Sub(a.lastPulse) < pulseThrottle {
		return
	}
	a.lastPulse = now
	a.tracker.ActivityPulse()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.FocusMsg:
		a.tracker.FocusChanged(true)
		return a, nil

	case tea.BlurMsg:
		a.tracker.FocusChanged(false)
		return a, nil

	case tea.MouseMsg:
		// Motion reports at an unchanged position carry no new activity;
		// clicks and wheel events always count.
		if msg.Action == tea.MouseActionMotion && msg.X == a.lastMouseX && msg.Y == a.lastMouseY {
			return a, nil
		}
		a.lastMouseX, a.lastMouseY = msg.X, msg.Y
		a.pulse()
		return a, nil

	case tea.KeyMsg:
		a.pulse()

		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Sync):
			return a, a.doSync()
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewReports
			return a, a.reports.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewSettings
			return a, nil
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % 3
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		a.tracker.Tick()
		cmds = append(cmds, tickCmd())
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case statusMsg:
		a.status = msg.text
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	return a.activeView == viewSettings && a.settings.formActive
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewReports:
		return a.reports.refresh()
	}
	return nil
}

func (a App) doSync() tea.Cmd {
	if a.syncer == nil {
		return nil
	}
	return func() tea.Msg {
		ok, msg := a.syncer.SyncOffline()
		return statusMsg{text: msg, isError: !ok}
	}
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	// Show export picker overlay
	if a.exportPicking {
		content = a.renderExportPicker(contentHeight)
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("blendtime")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	// Tracking indicator in footer
	st := a.tracker.State()
	var trackInfo string
	if st.Active {
		trackInfo = successStyle.Render(" ● " + formatSeconds(int64(a.queue.TrackedTimeLive())))
	} else {
		trackInfo = warningStyle.Render(" ⏸ " + string(st.Reason))
	}

	left := footerStyle.Render(helpView)
	right := trackInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker(_ int) string {
	title := titleStyle.Render("Export Format")
	formats := []string{"CSV", "JSON"}
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	return func() tea.Msg {
		totals, err := a.store.LastDaysTotals(30)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		deliveries, _ := a.store.RecentDeliveries(100)

		home, _ := os.UserHomeDir()
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("blendtime-export-%s.csv", dateStr))
			if err := export.ToCSV(totals, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("blendtime-export-%s.json", dateStr))
			if err := export.ToJSON(totals, deliveries, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
