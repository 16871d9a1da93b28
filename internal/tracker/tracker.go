// Package tracker decides whether work time should be counted right now and
// turns host activity events into heartbeat enqueues. The decision itself is
// a pure function; Tracker adds the state machine around it so pause/resume
// side effects fire exactly once per transition.
package tracker

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/avosk/blendtime/internal/settings"
)

// Reason explains why tracking is paused.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonUnsaved    Reason = "unsaved file"
	ReasonMissingKey Reason = "no API key"
	ReasonUnfocused  Reason = "window unfocused"
	ReasonIdle       Reason = "idle"
	ReasonDisabled   Reason = "disabled"
)

// Decision is the evaluator's verdict: track, or pause for a reason.
type Decision struct {
	Active bool
	Reason Reason
}

// Evaluate checks the pause conditions in priority order. An unsaved document
// wins over a missing key, which wins over focus, which wins over idleness;
// only the highest-priority reason is reported.
func Evaluate(saved bool, apiKey string, focused bool, idleFor, idleTimeout time.Duration) Decision {
	switch {
	case !saved:
		return Decision{Reason: ReasonUnsaved}
	case apiKey == "":
		return Decision{Reason: ReasonMissingKey}
	case !focused:
		return Decision{Reason: ReasonUnfocused}
	case idleFor >= idleTimeout:
		return Decision{Reason: ReasonIdle}
	}
	return Decision{Active: true}
}

// Enqueuer accepts activity events for throttled delivery.
type Enqueuer interface {
	Enqueue(entity string, isWrite bool)
}

// EventLog records human-readable tracking transitions.
type EventLog interface {
	LogEvent(msg string)
}

// Syncer flushes offline heartbeats. Optional.
type Syncer interface {
	SyncOffline() (bool, string)
}

const syncInterval = 30 * time.Second

// State is a snapshot for display.
type State struct {
	Active     bool
	Reason     Reason
	Document   string
	IdleFor    time.Duration
	SyncStatus string
}

// Tracker is the tracking state machine. Host adapters feed it events; it
// enqueues heartbeats while active and logs every pause/resume transition.
type Tracker struct {
	mu sync.Mutex

	settings *settings.Settings
	queue    Enqueuer
	events   EventLog
	syncer   Syncer

	now       func() time.Time
	syncEvery time.Duration

	document     string
	focused      bool
	lastActivity time.Time
	active       bool
	reason       Reason
	disabled     bool
	syncStatus   string

	done    chan struct{}
	stopped bool
}

// New builds a Tracker starting paused on an unsaved document. events and
// syncer may be nil.
func New(cfg *settings.Settings, queue Enqueuer, events EventLog, syncer Syncer) *Tracker {
	return &Tracker{
		settings:  cfg,
		queue:     queue,
		events:    events,
		syncer:    syncer,
		now:       time.Now,
		syncEvery: syncInterval,
		focused:   true,
		reason:    ReasonUnsaved,
		done:      make(chan struct{}),
	}
}

// Start launches the periodic offline sync loop. Safe to skip when no syncer
// is configured.
func (t *Tracker) Start() {
	if t.syncer == nil {
		return
	}
	go t.syncLoop()
}

// Stop terminates the sync loop. Idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.done)
}

func (t *Tracker) syncLoop() {
	ticker := time.NewTicker(t.syncEvery)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			ok, msg := t.syncer.SyncOffline()
			t.mu.Lock()
			if ok {
				t.syncStatus = "Sync " + t.now().Format("15:04:05")
			} else {
				t.syncStatus = "Sync Error"
				log.Printf("tracker: offline sync: %s", msg)
			}
			t.mu.Unlock()
		}
	}
}

// SetDocument records the current document path without treating the change
// as activity. Pass "" for an unsaved document.
func (t *Tracker) SetDocument(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.document = path
	t.reevaluateLocked()
}

// ActivityPulse reports user input. While tracking is active the pulse is
// forwarded to the queue, which throttles on its own.
func (t *Tracker) ActivityPulse() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = t.now()
	t.reevaluateLocked()
	if t.active {
		t.queue.Enqueue(t.document, false)
	}
}

// DocumentSaved reports a save of path. Saves both update the document and,
// when tracking is active, enqueue a write heartbeat. The write bypasses the
// resume enqueue so it is not throttled away.
func (t *Tracker) DocumentSaved(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.document = path
	t.lastActivity = t.now()
	if path != "" {
		t.logEventLocked("file saved " + filepath.Base(path))
	}
	t.reevaluateLocked()
	if t.active {
		t.queue.Enqueue(t.document, true)
	}
}

// FocusChanged reports window focus. Focus alone is not activity; only a
// resume transition produces a heartbeat.
func (t *Tracker) FocusChanged(focused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = focused
	wasActive := t.active
	t.reevaluateLocked()
	if !wasActive && t.active {
		t.queue.Enqueue(t.document, false)
	}
}

// Tick re-evaluates the pause conditions. Call it periodically so idle
// pauses happen without waiting for the next input event.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := t.active
	t.reevaluateLocked()
	if !wasActive && t.active {
		t.queue.Enqueue(t.document, false)
	}
}

// Disable pauses tracking permanently. No later event resumes it.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = true
	t.reevaluateLocked()
}

// State returns a snapshot for display.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	idleFor := time.Duration(0)
	if !t.lastActivity.IsZero() {
		idleFor = t.now().Sub(t.lastActivity)
	}
	return State{
		Active:     t.active,
		Reason:     t.reason,
		Document:   t.document,
		IdleFor:    idleFor,
		SyncStatus: t.syncStatus,
	}
}

func (t *Tracker) reevaluateLocked() {
	var d Decision
	if t.disabled {
		d = Decision{Reason: ReasonDisabled}
	} else {
		idleFor := time.Duration(0)
		if !t.lastActivity.IsZero() {
			idleFor = t.now().Sub(t.lastActivity)
		} else {
			idleFor = t.settings.IdleTimeout()
		}
		d = Evaluate(t.document != "", t.settings.APIKey(), t.focused, idleFor, t.settings.IdleTimeout())
	}

	if d.Active == t.active && d.Reason == t.reason {
		return
	}
	t.active = d.Active
	t.reason = d.Reason

	if d.Active {
		t.logEventLocked("tracking resumed")
	} else {
		t.logEventLocked("tracking paused (" + string(d.Reason) + ")")
	}
}

func (t *Tracker) logEventLocked(msg string) {
	log.Printf("tracker: %s", msg)
	if t.events != nil {
		t.events.LogEvent(msg)
	}
}
