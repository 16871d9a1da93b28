package tui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avosk/blendtime/internal/heartbeat"
	"github.com/avosk/blendtime/internal/settings"
	"github.com/avosk/blendtime/internal/statestore"
	"github.com/avosk/blendtime/internal/store"
	"github.com/avosk/blendtime/internal/tracker"
)

type nopSender struct{}

func (nopSender) Send(hb heartbeat.Heartbeat, extras []heartbeat.Heartbeat) {}

type fakeSyncer struct {
	calls int
	ok    bool
}

func (f *fakeSyncer) SyncOffline() (bool, string) {
	f.calls++
	if f.ok {
		return true, "Offline activity synced."
	}
	return false, "Offline sync failed (code 105)."
}

type testEnv struct {
	app     App
	cfg     *settings.Settings
	store   *store.Store
	tracker *tracker.Tracker
	queue   *heartbeat.Queue
	syncer  *fakeSyncer
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := settings.New(filepath.Join(dir, "wakatime.cfg"))
	if apiKey != "" {
		cfg.SetAPIKey(apiKey)
	}

	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	state := statestore.New(filepath.Join(dir, "daily_state.json"))
	q := heartbeat.NewQueue(cfg, state, s, nopSender{})
	tr := tracker.New(cfg, q, nil, nil)
	syncer := &fakeSyncer{ok: true}

	app := NewApp(cfg, s, tr, q, syncer)
	return &testEnv{app: app, cfg: cfg, store: s, tracker: tr, queue: q, syncer: syncer}
}

func (e *testEnv) update(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	m, cmd := e.app.Update(msg)
	app, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T, want App", m)
	}
	e.app = app
	return cmd
}

func (e *testEnv) press(t *testing.T, k string) tea.Cmd {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	return e.update(t, msg)
}

func (e *testEnv) resize(t *testing.T, w, h int) {
	t.Helper()
	e.update(t, tea.WindowSizeMsg{Width: w, Height: h})
}

// ============================================================
// View switching
// ============================================================

func TestTabSwitchesViews(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	if e.app.activeView != viewDashboard {
		t.Fatalf("initial view = %d, want dashboard", e.app.activeView)
	}

	e.press(t, "2")
	if e.app.activeView != viewReports {
		t.Fatalf("view = %d, want reports", e.app.activeView)
	}

	e.press(t, "3")
	if e.app.activeView != viewSettings {
		t.Fatalf("view = %d, want settings", e.app.activeView)
	}

	e.press(t, "1")
	if e.app.activeView != viewDashboard {
		t.Fatalf("view = %d, want dashboard", e.app.activeView)
	}
}

func TestTabKeyCyclesViews(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	for i := 0; i < 3; i++ {
		e.press(t, "tab")
	}
	if e.app.activeView != viewDashboard {
		t.Fatalf("three tabs should return to dashboard, got %d", e.app.activeView)
	}
}

func TestQuitKey(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	cmd := e.press(t, "q")
	if cmd == nil {
		t.Fatal("q should produce a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
}

// ============================================================
// Host integration: focus and activity
// ============================================================

func TestFocusMessagesReachTracker(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)
	e.tracker.DocumentSaved("/work/scene.blend")

	e.update(t, tea.BlurMsg{})
	if st := e.tracker.State(); st.Active || st.Reason != tracker.ReasonUnfocused {
		t.Fatalf("state = %+v, want paused (unfocused)", st)
	}

	e.update(t, tea.FocusMsg{})
	if st := e.tracker.State(); !st.Active {
		t.Fatalf("state = %+v, want active after focus", st)
	}
}

func TestKeyPressPulsesTracker(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)
	e.tracker.DocumentSaved("/work/scene.blend")

	e.press(t, "x")
	if st := e.tracker.State(); !st.Active {
		t.Fatalf("state = %+v, want active after key press", st)
	}
}

func TestPulseThrottleCollapsesFloods(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	e.update(t, tea.MouseMsg{Action: tea.MouseActionMotion})
	first := e.app.lastPulse
	e.update(t, tea.MouseMsg{Action: tea.MouseActionMotion})
	if !e.app.lastPulse.Equal(first) {
		t.Fatal("second event inside the throttle window should not pulse")
	}
}

func TestMouseMotionDedupedByPosition(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	e.update(t, tea.MouseMsg{Action: tea.MouseActionMotion, X: 5, Y: 5})
	if e.app.lastPulse.IsZero() {
		t.Fatal("first motion should pulse")
	}

	// Clear the throttle so only the position dedup can suppress the pulse.
	e.app.lastPulse = time.Time{}
	e.update(t, tea.MouseMsg{Action: tea.MouseActionMotion, X: 5, Y: 5})
	if !e.app.lastPulse.IsZero() {
		t.Fatal("motion at an unchanged position should not pulse")
	}

	e.update(t, tea.MouseMsg{Action: tea.MouseActionMotion, X: 6, Y: 5})
	if e.app.lastPulse.IsZero() {
		t.Fatal("motion to a new position should pulse")
	}

	e.app.lastPulse = time.Time{}
	e.update(t, tea.MouseMsg{Action: tea.MouseActionPress, X: 6, Y: 5})
	if e.app.lastPulse.IsZero() {
		t.Fatal("a click at the same position should still pulse")
	}
}

func TestTickAdvancesTracker(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	cmd := e.update(t, tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick should schedule the next tick")
	}
}

// ============================================================
// Manual offline sync
// ============================================================

func TestSyncKeyTriggersSyncer(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	cmd := e.press(t, "s")
	if cmd == nil {
		t.Fatal("s should produce a sync command")
	}
	msg := cmd()
	if e.syncer.calls != 1 {
		t.Fatalf("syncer calls = %d, want 1", e.syncer.calls)
	}
	status, ok := msg.(statusMsg)
	if !ok {
		t.Fatalf("sync result = %T, want statusMsg", msg)
	}
	if status.isError {
		t.Fatalf("sync should succeed, got %q", status.text)
	}
}

// ============================================================
// Export picker
// ============================================================

func TestExportPicker(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	e.press(t, "e")
	if !e.app.exportPicking {
		t.Fatal("e should open the export picker")
	}

	view := e.app.View()
	if !strings.Contains(view, "Export Format") {
		t.Fatal("picker overlay should be visible")
	}

	e.press(t, "esc")
	if e.app.exportPicking {
		t.Fatal("esc should close the picker")
	}
}

func TestExportWritesCSV(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)
	e.store.UpsertDailyTotal(time.Now(), 3600)

	e.press(t, "e")
	cmd := e.press(t, "enter") // CSV is the first option
	if cmd == nil {
		t.Fatal("enter should run the export")
	}
	msg := cmd()
	done, ok := msg.(exportDoneMsg)
	if !ok {
		t.Fatalf("export result = %T (%v), want exportDoneMsg", msg, msg)
	}
	if !strings.HasSuffix(done.path, ".csv") {
		t.Fatalf("export path = %q, want .csv", done.path)
	}
}

// ============================================================
// Rendering
// ============================================================

func TestViewRendersStateAndTabs(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	view := e.app.View()
	for _, want := range []string{"blendtime", "Dashboard", "Reports", "Settings"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
	// Starts paused on an unsaved document.
	if !strings.Contains(view, "PAUSED") {
		t.Fatal("view should show the paused state")
	}
}

func TestViewShowsTrackingWhenActive(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)
	e.tracker.DocumentSaved("/work/scene.blend")

	view := e.app.View()
	if !strings.Contains(view, "TRACKING") {
		t.Fatal("view should show active tracking")
	}
	if !strings.Contains(view, "scene.blend") {
		t.Fatal("view should show the document name")
	}
}

func TestViewBeforeResize(t *testing.T) {
	e := newTestEnv(t, "key")
	if e.app.View() != "Loading..." {
		t.Fatal("zero-width view should render the loading placeholder")
	}
}

// ============================================================
// Settings view
// ============================================================

func TestSettingsFormOpensAndCaptures(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)

	e.press(t, "3")
	e.press(t, "enter")
	if !e.app.settings.formActive {
		t.Fatal("enter should open the settings form")
	}
	if !e.app.isFormActive() {
		t.Fatal("app should delegate input to the form")
	}

	// Keys that normally switch views must go to the form instead.
	e.press(t, "1")
	if e.app.activeView != viewSettings {
		t.Fatal("view keys must not fire while the form captures input")
	}

	e.press(t, "esc")
	if e.app.settings.formActive {
		t.Fatal("esc should close the form")
	}
}

func TestSettingsViewMasksKey(t *testing.T) {
	e := newTestEnv(t, "waka_1234567890abcdef")
	e.resize(t, 100, 40)

	e.press(t, "3")
	view := e.app.View()
	if strings.Contains(view, "waka_1234567890abcdef") {
		t.Fatal("full API key must never render")
	}
	if !strings.Contains(view, "waka…cdef") {
		t.Fatal("masked key should render")
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "(not set)"},
		{"short", "********"},
		{"waka_1234567890abcdef", "waka…cdef"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ============================================================
// Reports view
// ============================================================

func TestReportsDateRangeDaily(t *testing.T) {
	r := reportsModel{mode: reportDaily}
	from, to := r.dateRange()
	if days := int(to.Sub(from).Hours() / 24); days != 7 {
		t.Fatalf("daily range spans %d days, want 7", days)
	}
}

func TestReportsDateRangeWeeklyStartsMonday(t *testing.T) {
	r := reportsModel{mode: reportWeekly}
	from, to := r.dateRange()
	if from.Weekday() != time.Monday {
		t.Fatalf("weekly range starts on %s, want Monday", from.Weekday())
	}
	if days := int(to.Sub(from).Hours() / 24); days != 7 {
		t.Fatalf("weekly range spans %d days, want 7", days)
	}
}

func TestReportsOffsetNavigation(t *testing.T) {
	e := newTestEnv(t, "key")
	e.resize(t, 100, 40)
	e.press(t, "2")

	e.update(t, tea.KeyMsg{Type: tea.KeyLeft})
	if e.app.reports.offset != 1 {
		t.Fatalf("offset = %d, want 1 after left", e.app.reports.offset)
	}

	e.update(t, tea.KeyMsg{Type: tea.KeyRight})
	if e.app.reports.offset != 0 {
		t.Fatalf("offset = %d, want 0 after right", e.app.reports.offset)
	}

	e.update(t, tea.KeyMsg{Type: tea.KeyRight})
	if e.app.reports.offset != 0 {
		t.Fatal("offset must not go below 0")
	}
}

// ============================================================
// Helpers
// ============================================================

func TestFormatHelpers(t *testing.T) {
	if got := formatSeconds(3661); got != "01:01:01" {
		t.Errorf("formatSeconds(3661) = %q", got)
	}
	if got := formatHours(5400); got != "1.5h" {
		t.Errorf("formatHours(5400) = %q", got)
	}
}
