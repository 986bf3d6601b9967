// Package coord assembles the coordinator: executor, tmux and git
// wrappers, registry, lifecycle controller, reconciliation loop, and
// delayed sender, behind one statically typed operation surface. RPC or
// CLI adapters stay thin; every operation here returns a typed payload
// or a classified error.
package coord

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/parcoord/parcoord/internal/config"
	"github.com/parcoord/parcoord/internal/execx"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/git"
	"github.com/parcoord/parcoord/internal/lifecycle"
	"github.com/parcoord/parcoord/internal/reconcile"
	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/sender"
	"github.com/parcoord/parcoord/internal/tmux"
)

// Coordinator owns all components for one process.
type Coordinator struct {
	cfg  config.Config
	exec *execx.Runner
	tm   *tmux.Tmux
	reg  *registry.Registry
	life *lifecycle.Controller
	send *sender.Sender
	loop *reconcile.Loop
}

// New wires a coordinator from configuration.
func New(cfg config.Config) *Coordinator {
	ex := &execx.Runner{DefaultTimeout: cfg.Exec.Timeout.Duration}
	tm := tmux.New(ex)

	reg := registry.New()
	reg.SetQueueCap(cfg.Registry.MessageQueueCap)
	reg.SetMaxMessageAge(cfg.Registry.MessageMaxAge.Duration)

	life := lifecycle.New(tm, func(repoDir string) lifecycle.GitController {
		return git.New(ex, repoDir)
	}, reg)

	snd := sender.New(tm)
	snd.SetWorkers(cfg.Sender.Workers)
	snd.SetQueueCap(cfg.Sender.QueueCap)
	snd.SetDefaultDelay(cfg.Sender.Delay.Duration)

	loop := reconcile.New(tm, reg)
	loop.SetInterval(cfg.Reconcile.Interval.Duration)

	return &Coordinator{
		cfg:  cfg,
		exec: ex,
		tm:   tm,
		reg:  reg,
		life: life,
		send: snd,
		loop: loop,
	}
}

// SetLogger routes all component logging through one sink.
func (c *Coordinator) SetLogger(logf func(format string, args ...interface{})) {
	if logf == nil {
		logf = log.Printf
	}
	c.reg.SetLogger(logf)
	c.life.SetLogger(logf)
	c.send.SetLogger(logf)
	c.loop.SetLogger(logf)
}

// Start launches the reconciliation loop and the sender pool.
func (c *Coordinator) Start(ctx context.Context) {
	c.send.Start(ctx)
	c.loop.Start(ctx)
}

// Stop shuts both workers down.
func (c *Coordinator) Stop() {
	c.loop.Stop()
	c.send.Stop()
}

// ErrToolUnavailable marks a missing external tool so callers can exit
// with a dedicated code.
var ErrToolUnavailable = errors.New("required tool unavailable")

// Preflight verifies the external tools the coordinator shells out to.
func (c *Coordinator) Preflight(dir string) error {
	if !c.tm.IsAvailable() {
		return fault.Wrap(fault.KindExternalFailure, ErrToolUnavailable, "tmux is not on PATH or not runnable")
	}
	if !git.New(c.exec, dir).IsAvailable() {
		return fault.Wrap(fault.KindExternalFailure, ErrToolUnavailable, "git is not on PATH or not runnable")
	}
	return nil
}

// Registry exposes the store for observers (TUI, diagnostics).
func (c *Coordinator) Registry() *registry.Registry {
	return c.reg
}

// ReconcileNow runs one reconciliation pass synchronously.
func (c *Coordinator) ReconcileNow() {
	c.loop.Tick()
}

// OnRoster forwards a roster observer to the reconciliation loop. Must
// be called before Start.
func (c *Coordinator) OnRoster(fn func([]registry.Session)) {
	c.loop.OnRoster(fn)
}

// CreateMasterSession creates the master session for a project. An empty
// cwd means the current directory.
func (c *Coordinator) CreateMasterSession(projectID, cwd string) (registry.Session, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return registry.Session{}, fault.Wrap(fault.KindInternal, err, "resolving working directory")
		}
		cwd = wd
	}
	return c.life.CreateMaster(projectID, cwd)
}

// CreateChildSession creates an isolated child workspace and session.
func (c *Coordinator) CreateChildSession(projectID, taskID, cwd, branch string) (registry.Session, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return registry.Session{}, fault.Wrap(fault.KindInternal, err, "resolving working directory")
		}
		cwd = wd
	}
	return c.life.CreateChild(projectID, taskID, cwd, branch)
}

// TerminateSession tears a session down. Absent sessions are a no-op.
func (c *Coordinator) TerminateSession(name string) (lifecycle.TerminationSummary, error) {
	return c.life.Terminate(name)
}

// RegisterRelationship binds a child to its parent master.
func (c *Coordinator) RegisterRelationship(parent, child, taskID, projectID string) error {
	return c.reg.RegisterRelationship(parent, child, taskID, projectID)
}

// ReportStatus records a status report for a session.
func (c *Coordinator) ReportStatus(name, status string, progress int, details string) error {
	st := registry.Status(status)
	if !st.Valid() {
		return fault.New(fault.KindInvalidArgument, "unknown status %q", status)
	}
	return c.reg.UpsertStatus(name, st, progress, details)
}

// ListChildren lists a master's children with health scores.
func (c *Coordinator) ListChildren(parent string) ([]registry.ChildInfo, error) {
	return c.reg.ListChildren(parent)
}

// QueryStatus returns one session's record.
func (c *Coordinator) QueryStatus(name string) (registry.Session, error) {
	return c.reg.QueryStatus(name)
}

// QueryAll returns every tracked session.
func (c *Coordinator) QueryAll() map[string]registry.Session {
	return c.reg.QueryAll()
}

// SendMessage enqueues a message between sessions and returns its ID.
func (c *Coordinator) SendMessage(from, to, msgType, content string) (string, error) {
	return c.reg.EnqueueMessage(from, to, registry.MessageType(msgType), content)
}

// DrainMessages returns and marks read all unread messages for a
// session.
func (c *Coordinator) DrainMessages(name string) []registry.Message {
	return c.reg.DrainUnread(name)
}

// SendDelayed enqueues a two-phase delivery and returns the request ID.
func (c *Coordinator) SendDelayed(session, content string, delay time.Duration, priority string, window, pane *int) (string, error) {
	prio, err := sender.ParsePriority(priority)
	if err != nil {
		return "", err
	}
	return c.send.Enqueue(sender.EnqueueRequest{
		SessionName: session,
		Content:     content,
		Delay:       delay,
		Priority:    prio,
		Window:      window,
		Pane:        pane,
	})
}

// DelayedStatus reports a pending delivery's phase. Settled requests
// are forgotten and report not found.
func (c *Coordinator) DelayedStatus(requestID string) (sender.RequestStatus, error) {
	return c.send.Status(requestID)
}

// CancelDelayed aborts a pending or in-flight delivery.
func (c *Coordinator) CancelDelayed(requestID string) bool {
	return c.send.Cancel(requestID)
}

// Metrics returns the sender's counters.
func (c *Coordinator) Metrics() sender.MetricsSnapshot {
	return c.send.Metrics()
}
