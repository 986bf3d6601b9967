// Package reconcile keeps the registry consistent with the tmux server.
// A ticker-driven loop observes the live session list, adopts
// coordinator-named sessions created outside the coordinator, evicts
// records whose tmux session has stayed gone, and sweeps expired
// messages.
package reconcile

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/parcoord/parcoord/internal/constants"
	"github.com/parcoord/parcoord/internal/names"
	"github.com/parcoord/parcoord/internal/registry"
)

// SessionLister is the tmux surface the loop needs. *tmux.Tmux
// satisfies it.
type SessionLister interface {
	ListSessions() ([]string, error)
}

// Loop is the reconciliation worker. Ticks never overlap; a tick that
// runs long delays the next instead of queueing.
type Loop struct {
	tmux     SessionLister
	reg      *registry.Registry
	interval time.Duration
	logf     func(format string, args ...interface{})
	now      func() time.Time
	onRoster func([]registry.Session)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a loop with the default tick interval.
func New(tm SessionLister, reg *registry.Registry) *Loop {
	return &Loop{
		tmux:     tm,
		reg:      reg,
		interval: constants.DefaultReconcileInterval,
		logf:     log.Printf,
		now:      time.Now,
	}
}

// SetInterval overrides the tick period.
func (l *Loop) SetInterval(d time.Duration) {
	if d > 0 {
		l.interval = d
	}
}

// SetLogger overrides the logger.
func (l *Loop) SetLogger(logf func(format string, args ...interface{})) {
	if logf != nil {
		l.logf = logf
	}
}

// OnRoster registers a callback that receives a sorted snapshot of all
// tracked sessions after every tick. Must be set before Start.
func (l *Loop) OnRoster(fn func([]registry.Session)) {
	l.onRoster = fn
}

// Start launches the worker. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Tick()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Tick()
			}
		}
	}()
}

// Stop shuts the worker down and waits for the in-flight tick. Calling
// Stop on a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

// Tick runs one reconciliation pass.
func (l *Loop) Tick() {
	live, err := l.tmux.ListSessions()
	if err != nil {
		// A dead or unreachable server means no sessions.
		l.logf("reconcile: list sessions: %v", err)
		live = nil
	}

	var coordinated []string
	adopted := 0
	for _, name := range live {
		if names.Parse(name).Role == names.RoleUnknown {
			continue
		}
		coordinated = append(coordinated, name)
		if l.reg.AdoptStub(name) {
			adopted++
		}
	}

	evicted := l.reg.ObserveLive(coordinated)
	swept := l.reg.Sweep(l.now())

	if adopted > 0 || len(evicted) > 0 || swept > 0 {
		l.logf("reconcile: adopted=%d evicted=%v swept=%d", adopted, evicted, swept)
	}

	if l.onRoster != nil {
		l.onRoster(rosterSnapshot(l.reg))
	}
}

// rosterSnapshot returns all sessions sorted by name.
func rosterSnapshot(reg *registry.Registry) []registry.Session {
	all := reg.QueryAll()
	roster := make([]registry.Session, 0, len(all))
	for _, s := range all {
		roster = append(roster, s)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Name < roster[j].Name })
	return roster
}
