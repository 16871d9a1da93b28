package timeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "timeline"))
}

func TestLogEventWritesLine(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent("tracking resumed")

	path := l.LatestLogPath()
	if path == "" {
		t.Fatal("expected a log file for today")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasSuffix(line, " - tracking resumed") {
		t.Fatalf("unexpected line: %q", line)
	}

	// Timestamp prefix must be ISO-8601 seconds with a Z suffix.
	stamp := strings.SplitN(line, " - ", 2)[0]
	if !strings.HasSuffix(stamp, "Z") {
		t.Fatalf("timestamp missing Z suffix: %q", stamp)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", stamp); err != nil {
		t.Fatalf("timestamp not parseable: %q (%v)", stamp, err)
	}
}

func TestLogEventAppends(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent("first")
	l.LogEvent("second")

	data, _ := os.ReadFile(l.LatestLogPath())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestLogEventSkipsEmpty(t *testing.T) {
	l := newTestLogger(t)
	l.LogEvent("   ")
	if l.LatestLogPath() != "" {
		t.Fatal("empty message should not create a log file")
	}
}

func TestOneFilePerUTCDay(t *testing.T) {
	l := newTestLogger(t)
	day := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return day }
	l.LogEvent("before midnight")

	l.now = func() time.Time { return day.Add(2 * time.Minute) }
	l.LogEvent("after midnight")

	first := filepath.Join(l.dir, "2025-03-09.log")
	second := filepath.Join(l.dir, "2025-03-10.log")
	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected log file %s: %v", p, err)
		}
	}
}

func TestLatestLogPathMissing(t *testing.T) {
	l := newTestLogger(t)
	if got := l.LatestLogPath(); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}
