package heartbeat

import (
	"log"
	"sync"
	"time"

	"github.com/avosk/blendtime/internal/settings"
	"github.com/avosk/blendtime/internal/statestore"
)

const (
	defaultPollInterval = time.Second

	// Gaps longer than this between activity updates are treated as idle
	// time (sleep, lunch) and not added to the day's total.
	maxTrackedGap = 600 * time.Second

	// A session is "hot" for this long after the last update; the live
	// display keeps counting inside the window without persisting per tick.
	liveWindow = 120 * time.Second

	writeThrottle     = 2 * time.Second
	heartbeatThrottle = 30 * time.Second

	apiKeyWarnInterval = 5 * time.Minute

	queueCapacity = 256
)

// Sender delivers one heartbeat plus coalesced extras. Implementations log
// and classify failures themselves; delivery problems never propagate back
// into the queue.
type Sender interface {
	Send(hb Heartbeat, extras []Heartbeat)
}

// History receives daily-total updates for reporting. Optional.
type History interface {
	UpsertDailyTotal(day time.Time, seconds int64) error
}

// Queue owns the tracked-time counter and a background worker that batches
// and delivers heartbeats. Producers call Enqueue from host callbacks; the
// worker is the only goroutine that talks to the Sender.
type Queue struct {
	mu sync.Mutex

	settings *settings.Settings
	state    *statestore.Store
	history  History
	sender   Sender

	ch   chan *Heartbeat // nil element is the stop sentinel
	done chan struct{}

	pollInterval time.Duration
	now          func() time.Time

	lastHB       *Heartbeat
	currentDay   time.Time
	totalSeconds int
	lastTracked  time.Time
	lastKeyWarn  time.Time
	stopped      bool
}

// NewQueue builds a Queue and restores today's persisted total. history may
// be nil.
func NewQueue(cfg *settings.Settings, state *statestore.Store, history History, sender Sender) *Queue {
	q := &Queue{
		settings:     cfg,
		state:        state,
		history:      history,
		sender:       sender,
		ch:           make(chan *Heartbeat, queueCapacity),
		done:         make(chan struct{}),
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	q.currentDay = dateOf(q.now())
	if secs, found := state.Load(q.currentDay); found {
		q.totalSeconds = secs
		log.Printf("heartbeat: restored tracked seconds for %s: %ds", q.currentDay.Format("2006-01-02"), secs)
	} else {
		state.Save(q.currentDay, 0)
	}
	return q
}

// Start launches the background worker.
func (q *Queue) Start() {
	go q.run()
}

// Enqueue accounts live tracked time for the gap since the previous call and,
// when throttling allows, queues a heartbeat for delivery. Called for every
// activity event; most calls only advance the counter.
func (q *Queue) Enqueue(entity string, isWrite bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()

	// Day rollover: reset before applying today's delta.
	if day := dateOf(now); !day.Equal(q.currentDay) {
		q.totalSeconds = 0
		q.currentDay = day
		q.state.Save(day, 0)
		log.Printf("heartbeat: daily tracked time reset (%s)", day.Format("2006-01-02"))
	}

	if !q.lastTracked.IsZero() {
		delta := now.Sub(q.lastTracked)
		if delta > 0 && delta < maxTrackedGap {
			q.totalSeconds += int(delta.Seconds())
			q.persistTotalLocked()
		}
	}
	q.lastTracked = now

	if entity == "" {
		return
	}

	ts := unixFloat(now)
	if q.lastHB != nil && entity == q.lastHB.Entity && !q.enoughTimePassed(ts, isWrite) {
		return
	}

	hb := &Heartbeat{
		Entity:    entity,
		Project:   ProjectName(entity),
		Timestamp: ts,
		IsWrite:   isWrite,
	}
	q.lastHB = hb
	select {
	case q.ch <- hb:
	default:
		log.Printf("heartbeat: queue full, dropping heartbeat for %s", entity)
	}
}

func (q *Queue) enoughTimePassed(ts float64, isWrite bool) bool {
	threshold := heartbeatThrottle.Seconds()
	if isWrite {
		threshold = writeThrottle.Seconds()
	}
	return q.lastHB == nil || ts-q.lastHB.Timestamp > threshold
}

func (q *Queue) persistTotalLocked() {
	q.state.Save(q.currentDay, q.totalSeconds)
	if q.history != nil {
		if err := q.history.UpsertDailyTotal(q.currentDay, int64(q.totalSeconds)); err != nil {
			log.Printf("heartbeat: history update: %v", err)
		}
	}
}

// TrackedTime returns the persisted total for today in seconds.
func (q *Queue) TrackedTime() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalSeconds
}

// TrackedTimeLive returns today's total plus the still-unpersisted seconds of
// the current hot session, giving displays a monotonically advancing value
// between updates.
func (q *Queue) TrackedTimeLive() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	base := q.totalSeconds
	if !q.lastTracked.IsZero() {
		delta := q.now().Sub(q.lastTracked)
		if delta > 0 && delta < liveWindow {
			base += int(delta.Seconds())
		}
	}
	return base
}

// Shutdown persists the final total and signals the worker to drain and stop.
// Use Join to bound the wait.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.persistTotalLocked()
	q.mu.Unlock()

	select {
	case q.ch <- nil:
	default:
		// Queue full; Join's timeout bounds the wait either way.
	}
}

// Join waits for the worker to finish, giving up after timeout. Returns true
// when the worker stopped in time.
func (q *Queue) Join(timeout time.Duration) bool {
	select {
	case <-q.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (q *Queue) run() {
	log.Printf("heartbeat: queue started")
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		// Checked before the key gate so shutdown completes even when no
		// key is configured and the sentinel is never dequeued.
		if q.isStopped() {
			log.Printf("heartbeat: queue stopping")
			close(q.done)
			return
		}

		if q.settings.APIKey() == "" {
			q.warnMissingKey()
			continue
		}

		hb, ok := q.tryDequeue()
		if !ok {
			continue
		}
		if hb == nil {
			log.Printf("heartbeat: queue stopping")
			close(q.done)
			return
		}

		extras, stop := q.drainExtras()
		q.sender.Send(*hb, extras)
		if stop {
			log.Printf("heartbeat: queue stopping")
			close(q.done)
			return
		}
	}
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *Queue) warnMissingKey() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if !q.lastKeyWarn.IsZero() && now.Sub(q.lastKeyWarn) < apiKeyWarnInterval {
		return
	}
	q.lastKeyWarn = now
	log.Printf("heartbeat: API key not configured; heartbeats are not being sent")
}

func (q *Queue) tryDequeue() (*Heartbeat, bool) {
	select {
	case hb := <-q.ch:
		return hb, true
	default:
		return nil, false
	}
}

// drainExtras empties the backlog so the whole batch goes out in a single
// delivery call. A sentinel encountered mid-drain stops the worker after
// this batch.
func (q *Queue) drainExtras() (extras []Heartbeat, stop bool) {
	for {
		select {
		case hb := <-q.ch:
			if hb == nil {
				return extras, true
			}
			extras = append(extras, *hb)
		default:
			return extras, false
		}
	}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
