package timeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger appends human-readable tracking events to one file per UTC calendar
// day. It is best-effort: write failures must never surface to the callbacks
// that produce events.
type Logger struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// New returns a Logger writing under dir.
func New(dir string) *Logger {
	return &Logger{dir: dir, now: time.Now}
}

// DefaultDir returns ~/.wakatime/timeline
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".wakatime", "timeline"), nil
}

// Dir returns the timeline directory.
func (l *Logger) Dir() string {
	return l.dir
}

func (l *Logger) todayPath() string {
	return filepath.Join(l.dir, l.now().UTC().Format("2006-01-02")+".log")
}

// LogEvent appends a timestamped line for message. Empty messages are
// skipped; I/O errors are logged and swallowed.
func (l *Logger) LogEvent(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		log.Printf("timeline: create dir: %v", err)
		return
	}
	f, err := os.OpenFile(l.todayPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("timeline: open log: %v", err)
		return
	}
	defer f.Close()

	stamp := l.now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05") + "Z"
	if _, err := fmt.Fprintf(f, "%s - %s\n", stamp, message); err != nil {
		log.Printf("timeline: write log: %v", err)
	}
}

// LatestLogPath returns today's log file, or "" when none exists yet.
func (l *Logger) LatestLogPath() string {
	path := l.todayPath()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
