package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avosk/blendtime/internal/heartbeat"
	"github.com/avosk/blendtime/internal/settings"
	"github.com/avosk/blendtime/internal/statestore"
	"github.com/avosk/blendtime/internal/store"
	"github.com/avosk/blendtime/internal/timeline"
	"github.com/avosk/blendtime/internal/tracker"
	"github.com/avosk/blendtime/internal/tui"
	"github.com/avosk/blendtime/internal/wakacli"
	"github.com/avosk/blendtime/internal/watch"
)

const version = "0.1.0"

// deliveryHistory bridges delivery outcomes into the sqlite store.
type deliveryHistory struct {
	st *store.Store
}

func (h deliveryHistory) RecordDelivery(d wakacli.Delivery) error {
	return h.st.RecordDelivery(store.Delivery{
		Entity:    d.Entity,
		Project:   d.Project,
		Timestamp: d.Timestamp,
		IsWrite:   d.IsWrite,
		Extras:    d.Extras,
		Status:    d.Status,
	})
}

func main() {
	var (
		filePath    = flag.String("file", "", "path to the .blend file to track")
		cliPath     = flag.String("wakatime-cli", "", "explicit path to the wakatime-cli binary")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("blendtime %s\n", version)
		return
	}

	// The terminal belongs to the TUI; keep the standard logger on a file.
	if home, err := os.UserHomeDir(); err == nil {
		logPath := filepath.Join(home, ".wakatime", "blendtime.log")
		os.MkdirAll(filepath.Dir(logPath), 0o755)
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			log.SetOutput(f)
			defer f.Close()
		}
	}
	log.Printf("blendtime %s starting", version)

	cfgPath, err := settings.DefaultPath()
	if err != nil {
		log.Fatalf("resolve config path: %v", err)
	}
	cfg := settings.New(cfgPath)
	cfg.EnsureOfflineDefaults()

	dbPath, err := store.DefaultDBPath()
	if err != nil {
		log.Fatalf("resolve db path: %v", err)
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	statePath, err := statestore.DefaultPath()
	if err != nil {
		log.Fatalf("resolve state path: %v", err)
	}
	state := statestore.New(statePath)

	tlDir, err := timeline.DefaultDir()
	if err != nil {
		log.Fatalf("resolve timeline dir: %v", err)
	}
	tl := timeline.New(tlDir)

	client := wakacli.NewClient(cfg, deliveryHistory{st: st}, version, *cliPath)

	queue := heartbeat.NewQueue(cfg, state, st, client)
	queue.Start()

	tr := tracker.New(cfg, queue, tl, client)
	tr.Start()

	var watcher *watch.Watcher
	if *filePath != "" {
		tr.SetDocument(*filePath)
		watcher = watch.New(*filePath, tr.DocumentSaved)
		watcher.Start()
	}

	app := tui.NewApp(cfg, st, tr, queue, client)
	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		log.Printf("tui: %v", err)
	}

	// Best-effort shutdown: persist the counter, give the worker a moment to
	// drain, then leave the rest to offline sync on the next run.
	if watcher != nil {
		watcher.Stop()
	}
	tr.Stop()
	queue.Shutdown()
	if !queue.Join(time.Second) {
		log.Printf("heartbeat worker did not drain in time")
	}
	log.Printf("blendtime stopped")
}
