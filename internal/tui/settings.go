package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/avosk/blendtime/internal/settings"
)

type settingsModel struct {
	cfg    *settings.Settings
	width  int
	height int

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	apiKey      *string
	serverURL   *string
	idleTimeout *string
	debug       *string
}

func newSettingsModel(cfg *settings.Settings) settingsModel {
	ak, su, it, dbg := "", "", "", ""
	return settingsModel{
		cfg:         cfg,
		apiKey:      &ak,
		serverURL:   &su,
		idleTimeout: &it,
		debug:       &dbg,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	// Load current values
	*s.apiKey = s.cfg.APIKey()
	*s.serverURL = s.cfg.APIServerURL()
	*s.idleTimeout = strconv.Itoa(int(s.cfg.IdleTimeout().Seconds()))
	*s.debug = "false"
	if s.cfg.Debug() {
		*s.debug = "true"
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("API key").Value(s.apiKey).EchoMode(huh.EchoModePassword),
			huh.NewInput().Title("API server URL").Value(s.serverURL),
		).Title("WakaTime"),
		huh.NewGroup(
			huh.NewInput().Title("Idle timeout (seconds)").Value(s.idleTimeout),
			huh.NewSelect[string]().Title("Debug logging").
				Options(
					huh.NewOption("Off", "false"),
					huh.NewOption("On", "true"),
				).Value(s.debug),
		).Title("Tracking"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.saveSettings()
		return s, func() tea.Msg { return statusMsg{text: "Settings saved"} }
	}

	return s, cmd
}

func (s settingsModel) saveSettings() {
	s.cfg.SetAPIKey(*s.apiKey)
	s.cfg.SetAPIServerURL(*s.serverURL)
	if secs, err := strconv.Atoi(*s.idleTimeout); err == nil && secs > 0 {
		s.cfg.Set("idle_timeout", strconv.Itoa(secs))
	}
	s.cfg.Set("debug", *s.debug)
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		formView := s.form.View()
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", formView),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	rows := []string{title, ""}
	add := func(label, value string) {
		l := lipgloss.NewStyle().Width(24).Render(label)
		rows = append(rows, fmt.Sprintf("  %s %s", l, highlightStyle.Render(value)))
	}

	add("api_key", maskKey(s.cfg.APIKey()))
	add("api_server_url", s.cfg.APIServerURL())
	add("idle_timeout", fmt.Sprintf("%.0f sec", s.cfg.IdleTimeout().Seconds()))
	add("sync_offline_activity", s.cfg.SyncOfflineActivityAmount())
	debugVal := "off"
	if s.cfg.Debug() {
		debugVal = "on"
	}
	add("debug", debugVal)

	rows = append(rows, "", hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func maskKey(k string) string {
	if k == "" {
		return "(not set)"
	}
	if len(k) <= 8 {
		return "********"
	}
	return k[:4] + "…" + k[len(k)-4:]
}
