package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/avosk/blendtime/internal/heartbeat"
	"github.com/avosk/blendtime/internal/store"
	"github.com/avosk/blendtime/internal/tracker"
)

// Reload chart and delivery data every this many ticks; the clock itself
// updates every tick from the queue.
const dashboardReloadTicks = 10

type dashboardModel struct {
	store   *store.Store
	tracker *tracker.Tracker
	queue   *heartbeat.Queue
	width   int
	height  int

	week       []store.DailyTotal
	deliveries []store.Delivery
	chart      barchart.Model

	ticks int
}

func newDashboardModel(s *store.Store, tr *tracker.Tracker, q *heartbeat.Queue) dashboardModel {
	return dashboardModel{
		store:   s,
		tracker: tr,
		queue:   q,
		chart:   barchart.New(40, 8),
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

type dashboardDataMsg struct {
	week       []store.DailyTotal
	deliveries []store.Delivery
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		week, _ := d.store.LastDaysTotals(7)
		deliveries, _ := d.store.RecentDeliveries(5)
		return dashboardDataMsg{week: week, deliveries: deliveries}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.week = msg.week
		d.deliveries = msg.deliveries
		d.buildChart()
		return d, nil

	case tickMsg:
		d.ticks++
		if d.ticks%dashboardReloadTicks == 0 {
			return d, d.loadData()
		}
		return d, nil
	}
	return d, nil
}

func (d *dashboardModel) buildChart() {
	chartWidth := d.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	d.chart = barchart.New(chartWidth, 8)

	barStyle := lipgloss.NewStyle().Foreground(colorPrimary)
	var bars []barchart.BarData
	for _, t := range d.week {
		label := t.Date[5:] // MM-DD
		hours := float64(t.Seconds) / 3600.0
		bars = append(bars, barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{
				{Name: t.Date, Value: hours, Style: barStyle},
			},
		})
	}

	d.chart.PushAll(bars)
	d.chart.Draw()
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	clockPanel := d.renderClockPanel(contentWidth)
	weekPanel := d.renderWeekPanel(contentWidth)
	deliveryPanel := d.renderDeliveryPanel(contentWidth)

	return lipgloss.JoinVertical(lipgloss.Left, clockPanel, weekPanel, deliveryPanel)
}

func (d dashboardModel) renderClockPanel(w int) string {
	st := d.tracker.State()
	timeStr := formatSeconds(int64(d.queue.TrackedTimeLive()))

	var timeDisplay, indicator string
	if st.Active {
		timeDisplay = clockActiveStyle.Width(w - 6).Render(timeStr)
		indicator = successStyle.Render("●  TRACKING")
	} else {
		timeDisplay = clockPausedStyle.Width(w - 6).Render(timeStr)
		indicator = warningStyle.Render("⏸  PAUSED (" + string(st.Reason) + ")")
	}

	docLine := mutedStyle.Render("no document")
	if st.Document != "" {
		docLine = highlightStyle.Render(filepath.Base(st.Document))
	}

	lines := []string{timeDisplay, indicator, docLine}
	if st.SyncStatus != "" {
		if st.SyncStatus == "Sync Error" {
			lines = append(lines, errorStyle.Render(st.SyncStatus))
		} else {
			lines = append(lines, mutedStyle.Render(st.SyncStatus))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	if st.Active {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderWeekPanel(w int) string {
	var weekTotal int64
	for _, t := range d.week {
		weekTotal += t.Seconds
	}

	title := titleStyle.Render("Last 7 Days")
	total := highlightStyle.Render(formatHours(weekTotal))
	header := fmt.Sprintf("%s  %s", title, total)

	if weekTotal == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No tracked time yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", d.chart.View()),
	)
}

func (d dashboardModel) renderDeliveryPanel(w int) string {
	title := titleStyle.Render("Recent Deliveries")
	if len(d.deliveries) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No heartbeats delivered yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for _, del := range d.deliveries {
		mark := successStyle.Render("✓")
		if del.Status != "sent" {
			mark = errorStyle.Render("✗")
		}
		kind := " "
		if del.IsWrite {
			kind = accentStyle.Render("w")
		}
		when := del.CreatedAt.Local().Format("15:04")
		name := filepath.Base(del.Entity)
		extra := ""
		if del.Extras > 0 {
			extra = mutedStyle.Render(fmt.Sprintf(" +%d", del.Extras))
		}
		row := fmt.Sprintf("  %s %s %s %-24s %s%s", mark, when, kind, name, mutedStyle.Render(del.Status), extra)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
