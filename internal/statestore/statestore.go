package statestore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const dateLayout = "2006-01-02"

type record struct {
	Date    string `json:"date"`
	Seconds int    `json:"seconds"`
}

// Store persists the tracked-seconds counter for the current day so totals
// survive restarts. Only a single record (today's) is kept.
type Store struct {
	path string
}

// New returns a Store backed by the given JSON file.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns ~/.wakatime/timeline/daily_state.json
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".wakatime", "timeline", "daily_state.json"), nil
}

// Load returns the persisted seconds for day. found is false when no record
// exists, the file is unreadable, or the stored date does not match day (a
// day rollover invalidates the stored value).
func (s *Store) Load(day time.Time) (int, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, false
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false
	}
	if rec.Date != day.Format(dateLayout) {
		return 0, false
	}
	if rec.Seconds < 0 {
		return 0, true
	}
	return rec.Seconds, true
}

// Save persists the counter for day. Failures are logged and swallowed; the
// counter keeps advancing in memory and the next save retries naturally.
func (s *Store) Save(day time.Time, seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("statestore: create dir: %v", err)
		return
	}
	data, err := json.Marshal(record{Date: day.Format(dateLayout), Seconds: seconds})
	if err != nil {
		log.Printf("statestore: marshal: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("statestore: write %s: %v", s.path, err)
	}
}
