package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avosk/blendtime/internal/store"
)

type reportMode int

const (
	reportDaily reportMode = iota
	reportWeekly
)

type reportsModel struct {
	store  *store.Store
	width  int
	height int

	mode   reportMode
	totals []store.DailyTotal
	offset int // weeks or 7-day blocks offset from today (0 = current)

	chart barchart.Model
}

func newReportsModel(s *store.Store) reportsModel {
	return reportsModel{
		store: s,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	totals []store.DailyTotal
}

func (r reportsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		from, to := r.dateRange()
		totals, _ := r.store.GetDailyTotals(from, to)
		return reportsDataMsg{totals: totals}
	}
}

func (r reportsModel) dateRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch r.mode {
	case reportWeekly:
		// Start of current week (Monday)
		weekday := today.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		startOfWeek := today.AddDate(0, 0, -int(weekday-time.Monday))
		startOfWeek = startOfWeek.AddDate(0, 0, -7*r.offset)
		return startOfWeek, startOfWeek.AddDate(0, 0, 7)
	default:
		// Daily: last 7 days
		end := today.AddDate(0, 0, 1-7*r.offset)
		start := end.AddDate(0, 0, -7)
		return start, end
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.totals = msg.totals
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Tab):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	from, to := r.dateRange()
	barStyle := lipgloss.NewStyle().Foreground(colorPrimary)
	emptyStyle := lipgloss.NewStyle().Foreground(colorSubtle)

	byDate := make(map[string]int64, len(r.totals))
	for _, t := range r.totals {
		byDate[t.Date] = t.Seconds
	}

	// Build bars for each day in range
	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")
		label := d.Format("Mon 02")

		secs := byDate[dateStr]
		value := barchart.BarValue{
			Name:  dateStr,
			Value: float64(secs) / 3600.0,
			Style: barStyle,
		}
		if secs == 0 {
			value.Style = emptyStyle
		}

		bars = append(bars, barchart.BarData{
			Label:  label,
			Values: []barchart.BarValue{value},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	// Mode tabs
	dailyTab := inactiveTabStyle.Render("Daily")
	weeklyTab := inactiveTabStyle.Render("Weekly")
	if r.mode == reportDaily {
		dailyTab = activeTabStyle.Render("Daily")
	} else {
		weeklyTab = activeTabStyle.Render("Weekly")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, dailyTab, weeklyTab)

	// Date range label
	from, to := r.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s — %s", from.Format("Jan 02"), to.Add(-24*time.Hour).Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", dateLabel,
	)

	chartView := r.chart.View()
	tableView := r.renderTotalsTable(w)

	nav := mutedStyle.Render("  ←/→: navigate  tab: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", chartView, "", tableView, "", nav,
		),
	)
}

func (r reportsModel) renderTotalsTable(w int) string {
	if len(r.totals) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	var rows []string
	headerRow := mutedStyle.Render(fmt.Sprintf("  %-12s %10s %8s", "Date", "Duration", "Hours"))
	rows = append(rows, headerRow)
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 34))))

	var total int64
	for _, t := range r.totals {
		total += t.Seconds
		rows = append(rows, fmt.Sprintf("  %-12s %10s %8s",
			t.Date, formatSeconds(t.Seconds), formatHours(t.Seconds),
		))
	}

	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 34))))
	rows = append(rows, highlightStyle.Render(fmt.Sprintf("  %-12s %10s %8s",
		"Total", formatSeconds(total), formatHours(total),
	)))

	return strings.Join(rows, "\n")
}
