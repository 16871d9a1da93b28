// Package watch polls a file for modification so saves made by the host
// application show up as events.
package watch

import (
	"log"
	"os"
	"sync"
	"time"
)

const defaultInterval = time.Second

// Watcher reports saves of a single file via a callback.
type Watcher struct {
	mu sync.Mutex

	path     string
	interval time.Duration
	onSaved  func(path string)

	lastMod  time.Time
	lastSize int64
	seen     bool

	done    chan struct{}
	stopped bool
}

// New builds a Watcher for path. onSaved runs on the watcher goroutine, so it
// must not block for long.
func New(path string, onSaved func(path string)) *Watcher {
	return &Watcher{
		path:     path,
		interval: defaultInterval,
		onSaved:  onSaved,
		done:     make(chan struct{}),
	}
}

// Start seeds the baseline from the file's current state and begins polling.
// A file that already exists does not fire an event until it changes.
func (w *Watcher) Start() {
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
		w.seen = true
	}
	go w.loop()
}

// Stop ends polling. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.done)
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("watch: stat %s: %v", w.path, err)
		}
		return
	}

	changed := !w.seen || !info.ModTime().Equal(w.lastMod) || info.Size() != w.lastSize
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	w.seen = true

	if changed {
		w.onSaved(w.path)
	}
}
