package settings

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// DefaultAPIServerURL is used when no server URL is configured.
	DefaultAPIServerURL = "https://api.wakatime.com/"

	// DefaultSyncOfflineActivity is the number of offline heartbeats the CLI
	// flushes per delivery call.
	DefaultSyncOfflineActivity = "100"

	// DefaultIdleTimeout pauses tracking after this much inactivity.
	DefaultIdleTimeout = 30 * time.Second

	section = "settings"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Settings wraps the shared wakatime INI config file. The file may be edited
// by other wakatime plugins or by the user; reads reflect the last load, not
// necessarily the bytes on disk.
type Settings struct {
	mu     sync.Mutex
	path   string
	file   *ini.File
	loaded bool
}

// New returns a Settings bound to the given config path. The file is loaded
// lazily on first access.
func New(path string) *Settings {
	return &Settings{path: path}
}

// DefaultPath returns ~/.wakatime.cfg
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".wakatime.cfg"), nil
}

func (s *Settings) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("settings: unable to read %s: %v", s.path, err)
		}
		s.file = ini.Empty()
		s.file.Section(section)
		s.enforceOfflineDefaults()
		return
	}

	// Some editors prepend a BOM; strip it and rewrite the file clean.
	if bytes.HasPrefix(data, utf8BOM) {
		data = bytes.TrimPrefix(data, utf8BOM)
		if err := os.WriteFile(s.path, data, 0o644); err != nil {
			log.Printf("settings: unable to rewrite %s without BOM: %v", s.path, err)
		}
	}

	f, err := ini.Load(data)
	if err != nil {
		log.Printf("settings: unable to parse %s: %v", s.path, err)
		s.file = ini.Empty()
	} else {
		s.file = f
	}
	s.file.Section(section)
	s.enforceOfflineDefaults()
}

func (s *Settings) saveLocked() {
	if err := s.file.SaveTo(s.path); err != nil {
		log.Printf("settings: could not save config to %s: %v", s.path, err)
	}
}

// Get returns the raw value for key in the settings section, or fallback.
func (s *Settings) Get(key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	v := strings.TrimSpace(s.file.Section(section).Key(key).String())
	if v == "" {
		return fallback
	}
	return v
}

// Set writes a key in the settings section and persists immediately. Save
// failures are logged, never returned; tracking continues in memory.
func (s *Settings) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	s.file.Section(section).Key(key).SetValue(value)
	s.saveLocked()
}

func (s *Settings) getBool(key string) bool {
	switch strings.ToLower(s.Get(key, "")) {
	case "y", "yes", "t", "true", "1":
		return true
	}
	return false
}

// APIKey returns the configured API key, or "" when unset.
func (s *Settings) APIKey() string {
	return s.Get("api_key", "")
}

// SetAPIKey stores a new API key and re-applies offline defaults.
func (s *Settings) SetAPIKey(key string) {
	s.Set("api_key", key)
	s.EnsureOfflineDefaults()
}

// Debug reports whether verbose CLI output is enabled.
func (s *Settings) Debug() bool {
	return s.getBool("debug")
}

// IdleTimeout returns the configured idle pause threshold.
func (s *Settings) IdleTimeout() time.Duration {
	raw := s.Get("idle_timeout", "")
	if raw == "" {
		return DefaultIdleTimeout
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return DefaultIdleTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

// APIServerURL returns the configured base server URL with any heartbeats
// endpoint suffix stripped. Falls back to the legacy api_url key, then to the
// default server.
func (s *Settings) APIServerURL() string {
	v := StripHeartbeatsSuffix(s.Get("api_server_url", ""))
	if v == "" {
		v = StripHeartbeatsSuffix(s.Get("api_url", ""))
	}
	if v == "" {
		return DefaultAPIServerURL
	}
	return v
}

// SetAPIServerURL stores the stripped base URL and keeps the derived
// heartbeats endpoint in api_url for the CLI.
func (s *Settings) SetAPIServerURL(raw string) {
	base := StripHeartbeatsSuffix(strings.TrimSpace(raw))
	if base == "" {
		base = strings.TrimRight(DefaultAPIServerURL, "/")
	}
	s.Set("api_server_url", base)
	s.Set("api_url", HeartbeatsURLFor(base))
	s.EnsureOfflineDefaults()
}

// HeartbeatsURL returns the full bulk heartbeats endpoint for the configured
// server.
func (s *Settings) HeartbeatsURL() string {
	return HeartbeatsURLFor(s.APIServerURL())
}

// SyncOfflineActivityAmount returns the offline flush batch size as a string
// suitable for the CLI flag. Invalid or non-positive values fall back to the
// default.
func (s *Settings) SyncOfflineActivityAmount() string {
	v := s.Get("sync_offline_activity", "")
	if v == "" || strings.EqualFold(v, "none") {
		return DefaultSyncOfflineActivity
	}
	if n, err := strconv.Atoi(v); err != nil || n <= 0 {
		return DefaultSyncOfflineActivity
	}
	return v
}

// EnsureOfflineDefaults forces offline batching on and a positive sync amount
// so heartbeats queue locally when the network is down.
func (s *Settings) EnsureOfflineDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	s.enforceOfflineDefaults()
}

func (s *Settings) enforceOfflineDefaults() {
	sec := s.file.Section(section)
	changed := false

	if !strings.EqualFold(strings.TrimSpace(sec.Key("offline").String()), "true") {
		sec.Key("offline").SetValue("true")
		changed = true
	}

	sync := strings.TrimSpace(sec.Key("sync_offline_activity").String())
	valid := false
	if sync != "" && !strings.EqualFold(sync, "none") {
		if n, err := strconv.Atoi(sync); err == nil && n > 0 {
			valid = true
		}
	}
	if !valid {
		sec.Key("sync_offline_activity").SetValue(DefaultSyncOfflineActivity)
		changed = true
	}

	if changed {
		s.saveLocked()
	}
}

// StripHeartbeatsSuffix removes a trailing heartbeats endpoint path from a
// server URL so only the base remains.
func StripHeartbeatsSuffix(url string) string {
	cleaned := strings.TrimSpace(url)
	cleaned = strings.TrimRight(cleaned, "/")
	for _, suffix := range []string{
		"/users/current/heartbeats.bulk",
		"/heartbeats.bulk",
		"/heartbeats",
	} {
		if strings.HasSuffix(cleaned, suffix) {
			cleaned = cleaned[:len(cleaned)-len(suffix)]
			break
		}
	}
	return cleaned
}

func normalizeAPIBase(raw string) string {
	base := StripHeartbeatsSuffix(raw)
	if base == "" {
		base = StripHeartbeatsSuffix(DefaultAPIServerURL)
	}
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasSuffix(base, "/api/v1"), strings.HasSuffix(base, "/v1"):
		return base
	case strings.HasSuffix(base, "/api"):
		return base + "/v1"
	}
	return base + "/api/v1"
}

// HeartbeatsURLFor derives the bulk heartbeats endpoint from a raw server URL.
// The derivation is idempotent: feeding an already-derived endpoint back in
// yields the same endpoint.
func HeartbeatsURLFor(raw string) string {
	base := strings.TrimRight(normalizeAPIBase(raw), "/")
	if strings.HasSuffix(base, "/users/current/heartbeats.bulk") {
		return base
	}
	if strings.HasSuffix(base, "/users/current") {
		return base + "/heartbeats.bulk"
	}
	return base + "/users/current/heartbeats.bulk"
}
