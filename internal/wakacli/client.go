// Package wakacli invokes the external wakatime-cli tool to deliver
// heartbeats and flush the offline queue. The tool's exit codes are the
// delivery protocol. Failed deliveries are not retried here; offline sync
// flushes them later.
package wakacli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avosk/blendtime/internal/heartbeat"
	"github.com/avosk/blendtime/internal/settings"
)

// wakatime-cli exit codes.
const (
	codeSuccess     = 0
	codeBenignSkip  = 102 // nothing to send, or heartbeat queued offline
	codeConfigError = 103
	codeInvalidKey  = 104
	codeTimeout     = 105
)

const runTimeout = 30 * time.Second

// Delivery outcome labels stored in history.
const (
	StatusSent       = "sent"
	StatusInvalidKey = "invalid-key"
	StatusConfig     = "config-error"
	StatusTimeout    = "timeout"
	StatusNoKey      = "no-api-key"
	StatusBadURL     = "bad-url"
	StatusNoCLI      = "cli-missing"
)

// History receives delivery outcomes for the dashboard. Optional.
type History interface {
	RecordDelivery(d Delivery) error
}

// Delivery mirrors store.Delivery without importing it, keeping this package
// decoupled from the database layer.
type Delivery struct {
	Entity    string
	Project   string
	Timestamp float64
	IsWrite   bool
	Extras    int
	Status    string
}

type runFunc func(ctx context.Context, name string, args []string, stdin []byte) (int, []byte, error)

// Client builds and executes wakatime-cli invocations.
type Client struct {
	settings *settings.Settings
	history  History
	version  string
	cliPath  string // explicit override; otherwise resolved per call
	run      runFunc
}

// NewClient returns a delivery client. history may be nil; cliPath may be ""
// to resolve the tool from $PATH and ~/.wakatime.
func NewClient(cfg *settings.Settings, history History, version, cliPath string) *Client {
	return &Client{
		settings: cfg,
		history:  history,
		version:  version,
		cliPath:  cliPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args []string, stdin []byte) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), out, nil
		}
		return -1, out, err
	}
	return 0, out, nil
}

func (c *Client) userAgent() string {
	return "blender-wakatime/" + c.version
}

// resolveCLI locates wakatime-cli: the explicit override, $PATH, then the
// shared ~/.wakatime directory other plugins install into.
func (c *Client) resolveCLI() string {
	if c.cliPath != "" {
		if _, err := os.Stat(c.cliPath); err == nil {
			return c.cliPath
		}
		return ""
	}
	if path, err := exec.LookPath("wakatime-cli"); err == nil {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, candidate := range []string{"wakatime-cli", "wakatime-cli.exe"} {
		path := filepath.Join(home, ".wakatime", candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func validServerURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// Send delivers one heartbeat plus coalesced extras. All failures are logged
// and classified; none propagate. Implements heartbeat.Sender.
func (c *Client) Send(hb heartbeat.Heartbeat, extras []heartbeat.Heartbeat) {
	record := func(status string) {
		if c.history == nil {
			return
		}
		err := c.history.RecordDelivery(Delivery{
			Entity:    hb.Entity,
			Project:   hb.Project,
			Timestamp: hb.Timestamp,
			IsWrite:   hb.IsWrite,
			Extras:    len(extras),
			Status:    status,
		})
		if err != nil {
			log.Printf("wakacli: record delivery: %v", err)
		}
	}

	apiKey := c.settings.APIKey()
	if apiKey == "" {
		log.Printf("wakacli: API key not configured; set it in settings")
		record(StatusNoKey)
		return
	}
	if url := strings.TrimRight(c.settings.APIServerURL(), "/"); !validServerURL(url) {
		log.Printf("wakacli: invalid API server URL %q", url)
		record(StatusBadURL)
		return
	}
	cliPath := c.resolveCLI()
	if cliPath == "" {
		log.Printf("wakacli: wakatime-cli not found; install it or point --wakatime-cli at it")
		record(StatusNoCLI)
		return
	}

	c.settings.EnsureOfflineDefaults()

	args := []string{
		"--entity", hb.Entity,
		"--time", strconv.FormatFloat(hb.Timestamp, 'f', 6, 64),
		"--plugin", c.userAgent(),
		"--key", apiKey,
		"--api-url", c.settings.HeartbeatsURL(),
		"--sync-offline-activity", c.settings.SyncOfflineActivityAmount(),
		"--project", hb.Project,
	}
	if hb.IsWrite {
		args = append(args, "--write")
	}
	if c.settings.Debug() {
		args = append(args, "--verbose")
	}

	var stdin []byte
	if len(extras) > 0 {
		data, err := json.Marshal(extras)
		if err != nil {
			log.Printf("wakacli: marshal extra heartbeats: %v", err)
		} else {
			args = append(args, "--extra-heartbeats")
			stdin = append(data, '\n')
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	code, output, err := c.run(ctx, cliPath, args, stdin)
	if err != nil {
		log.Printf("wakacli: failed to run wakatime-cli: %v", err)
		record(StatusNoCLI)
		return
	}
	record(c.interpret(code, output))
}

// interpret maps a wakatime-cli exit code to a status, applying side effects
// for the credential case.
func (c *Client) interpret(code int, output []byte) string {
	switch code {
	case codeSuccess, codeBenignSkip:
		if c.settings.Debug() {
			log.Printf("wakacli: heartbeat sent")
		}
		return StatusSent
	case codeInvalidKey:
		log.Printf("wakacli: invalid API key; clearing stored key, please re-enter it in settings")
		c.settings.SetAPIKey("")
		return StatusInvalidKey
	case codeConfigError:
		log.Printf("wakacli: configuration error; check the API key and server URL in %s", "~/.wakatime.cfg")
		return StatusConfig
	case codeTimeout:
		log.Printf("wakacli: API timeout; heartbeat queued offline for a later sync")
		return StatusTimeout
	default:
		log.Printf("wakacli: wakatime-cli exited with status %d", code)
		if len(output) > 0 {
			log.Printf("wakacli: output: %s", strings.TrimSpace(string(output)))
		}
		return fmt.Sprintf("error (%d)", code)
	}
}

// SyncOffline asks wakatime-cli to flush previously queued offline heartbeats.
// Returns ok and a short status message for display.
func (c *Client) SyncOffline() (bool, string) {
	if c.settings.APIKey() == "" {
		return false, "API key not configured."
	}
	cliPath := c.resolveCLI()
	if cliPath == "" {
		return false, "Unable to locate wakatime-cli for offline sync."
	}

	c.settings.EnsureOfflineDefaults()

	args := []string{
		"--api-url", c.settings.HeartbeatsURL(),
		"--sync-offline-activity", c.settings.SyncOfflineActivityAmount(),
		"--key", c.settings.APIKey(),
		"--plugin", c.userAgent(),
	}
	if c.settings.Debug() {
		args = append(args, "--verbose")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	code, output, err := c.run(ctx, cliPath, args, nil)
	if err != nil {
		return false, fmt.Sprintf("Offline sync error: %v", err)
	}
	if len(output) > 0 && c.settings.Debug() {
		log.Printf("wakacli: offline sync output: %s", strings.TrimSpace(string(output)))
	}
	if code == codeSuccess || code == codeBenignSkip {
		return true, "Offline activity synced."
	}
	return false, fmt.Sprintf("Offline sync failed (code %d).", code)
}
