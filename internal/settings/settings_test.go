package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "wakatime.cfg"))
}

// ============================================================
// Heartbeats URL derivation
// ============================================================

func TestHeartbeatsURLFor(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://api.wakatime.com/", "https://api.wakatime.com/api/v1/users/current/heartbeats.bulk"},
		{"https://api.wakatime.com", "https://api.wakatime.com/api/v1/users/current/heartbeats.bulk"},
		{"https://waka.example.com/api", "https://waka.example.com/api/v1/users/current/heartbeats.bulk"},
		{"https://waka.example.com/api/v1", "https://waka.example.com/api/v1/users/current/heartbeats.bulk"},
		{"https://waka.example.com/v1", "https://waka.example.com/v1/users/current/heartbeats.bulk"},
		{"https://waka.example.com/heartbeats", "https://waka.example.com/api/v1/users/current/heartbeats.bulk"},
		{"https://waka.example.com/heartbeats.bulk", "https://waka.example.com/api/v1/users/current/heartbeats.bulk"},
		{"", "https://api.wakatime.com/api/v1/users/current/heartbeats.bulk"},
	}
	for _, tt := range tests {
		got := HeartbeatsURLFor(tt.raw)
		if got != tt.want {
			t.Errorf("HeartbeatsURLFor(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestHeartbeatsURLForIdempotent(t *testing.T) {
	first := HeartbeatsURLFor("https://api.wakatime.com/")
	second := HeartbeatsURLFor(first)
	if first != second {
		t.Fatalf("derivation not idempotent: %q then %q", first, second)
	}
}

func TestStripHeartbeatsSuffix(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://x.test/api/v1/users/current/heartbeats.bulk", "https://x.test/api/v1"},
		{"https://x.test/heartbeats.bulk", "https://x.test"},
		{"https://x.test/heartbeats", "https://x.test"},
		{"https://x.test///", "https://x.test"},
		{"https://x.test", "https://x.test"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripHeartbeatsSuffix(tt.raw); got != tt.want {
			t.Errorf("StripHeartbeatsSuffix(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// ============================================================
// Config file round-trips
// ============================================================

func TestSetAndGet(t *testing.T) {
	s := newTestSettings(t)
	s.Set("api_key", "waka_123")
	if got := s.APIKey(); got != "waka_123" {
		t.Fatalf("APIKey = %q, want waka_123", got)
	}

	// A fresh Settings on the same path must see the persisted value.
	s2 := New(s.path)
	if got := s2.APIKey(); got != "waka_123" {
		t.Fatalf("persisted APIKey = %q, want waka_123", got)
	}
}

func TestAPIKeyEmptyByDefault(t *testing.T) {
	s := newTestSettings(t)
	if got := s.APIKey(); got != "" {
		t.Fatalf("expected empty api key, got %q", got)
	}
}

func TestSetAPIServerURL(t *testing.T) {
	s := newTestSettings(t)
	s.SetAPIServerURL("https://waka.example.com/api/v1/users/current/heartbeats.bulk")

	if got := s.APIServerURL(); got != "https://waka.example.com/api/v1" {
		t.Fatalf("APIServerURL = %q", got)
	}
	if got := s.Get("api_url", ""); got != "https://waka.example.com/api/v1/users/current/heartbeats.bulk" {
		t.Fatalf("api_url = %q", got)
	}
}

func TestAPIServerURLFallsBackToAPIURL(t *testing.T) {
	s := newTestSettings(t)
	s.Set("api_url", "https://waka.example.com/api/v1/users/current/heartbeats.bulk")
	if got := s.APIServerURL(); got != "https://waka.example.com/api/v1" {
		t.Fatalf("APIServerURL = %q", got)
	}
}

func TestAPIServerURLDefault(t *testing.T) {
	s := newTestSettings(t)
	if got := s.APIServerURL(); got != DefaultAPIServerURL {
		t.Fatalf("APIServerURL = %q, want default", got)
	}
}

func TestBOMTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wakatime.cfg")
	content := "\xef\xbb\xbf[settings]\napi_key = bom_key\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	if got := s.APIKey(); got != "bom_key" {
		t.Fatalf("APIKey = %q, want bom_key", got)
	}

	// The file must be rewritten without the BOM.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(string(data), "\xef\xbb\xbf") {
		t.Fatal("BOM should have been stripped on load")
	}
}

// ============================================================
// Offline defaults
// ============================================================

func TestEnsureOfflineDefaults(t *testing.T) {
	s := newTestSettings(t)
	s.EnsureOfflineDefaults()

	if got := s.Get("offline", ""); got != "true" {
		t.Fatalf("offline = %q, want true", got)
	}
	if got := s.Get("sync_offline_activity", ""); got != DefaultSyncOfflineActivity {
		t.Fatalf("sync_offline_activity = %q, want %s", got, DefaultSyncOfflineActivity)
	}
}

func TestOfflineDefaultsRepairInvalid(t *testing.T) {
	s := newTestSettings(t)
	s.Set("sync_offline_activity", "none")
	s.EnsureOfflineDefaults()
	if got := s.SyncOfflineActivityAmount(); got != DefaultSyncOfflineActivity {
		t.Fatalf("sync amount = %q, want default", got)
	}

	s.Set("sync_offline_activity", "-5")
	if got := s.SyncOfflineActivityAmount(); got != DefaultSyncOfflineActivity {
		t.Fatalf("negative sync amount should fall back, got %q", got)
	}
}

func TestSyncOfflineActivityAmountValid(t *testing.T) {
	s := newTestSettings(t)
	s.Set("sync_offline_activity", "250")
	if got := s.SyncOfflineActivityAmount(); got != "250" {
		t.Fatalf("sync amount = %q, want 250", got)
	}
}

// ============================================================
// Idle timeout / debug
// ============================================================

func TestIdleTimeoutDefault(t *testing.T) {
	s := newTestSettings(t)
	if got := s.IdleTimeout(); got != DefaultIdleTimeout {
		t.Fatalf("IdleTimeout = %v, want %v", got, DefaultIdleTimeout)
	}
}

func TestIdleTimeoutConfigured(t *testing.T) {
	s := newTestSettings(t)
	s.Set("idle_timeout", "45")
	if got := s.IdleTimeout(); got != 45*time.Second {
		t.Fatalf("IdleTimeout = %v, want 45s", got)
	}
}

func TestIdleTimeoutInvalid(t *testing.T) {
	s := newTestSettings(t)
	s.Set("idle_timeout", "banana")
	if got := s.IdleTimeout(); got != DefaultIdleTimeout {
		t.Fatalf("IdleTimeout = %v, want default for invalid value", got)
	}
	s.Set("idle_timeout", "-3")
	if got := s.IdleTimeout(); got != DefaultIdleTimeout {
		t.Fatalf("IdleTimeout = %v, want default for negative value", got)
	}
}

func TestDebug(t *testing.T) {
	s := newTestSettings(t)
	if s.Debug() {
		t.Fatal("debug should default to false")
	}
	s.Set("debug", "true")
	if !s.Debug() {
		t.Fatal("debug = true expected")
	}
	s.Set("debug", "0")
	if s.Debug() {
		t.Fatal("debug = false expected for 0")
	}
}

func TestMissingFileDoesNotError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does", "not", "exist.cfg"))
	if got := s.APIKey(); got != "" {
		t.Fatalf("APIKey = %q, want empty", got)
	}
}
