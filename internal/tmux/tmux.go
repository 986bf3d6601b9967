// Package tmux provides a wrapper for tmux session operations via the
// process executor.
package tmux

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parcoord/parcoord/internal/execx"
)

// Common errors detected from tmux stderr.
var (
	ErrNoServer        = errors.New("no tmux server running")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// runner is the executor surface tmux needs. *execx.Runner satisfies it.
type runner interface {
	Run(argv []string, timeout time.Duration) (execx.Result, error)
}

// Tmux wraps tmux operations.
type Tmux struct {
	exec    runner
	timeout time.Duration
}

// New creates a Tmux wrapper on top of an executor.
func New(exec runner) *Tmux {
	return &Tmux{exec: exec}
}

// SetTimeout overrides the per-command timeout. Zero means the executor
// default.
func (t *Tmux) SetTimeout(d time.Duration) {
	t.timeout = d
}

// run executes a tmux command and returns trimmed stdout.
func (t *Tmux) run(args ...string) (string, error) {
	argv := append([]string{"tmux"}, args...)
	res, err := t.exec.Run(argv, t.timeout)
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w", args[0], err)
	}
	if res.ExitCode != 0 {
		return "", t.wrapError(res, args)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// wrapError classifies tmux failures from stderr.
func (t *Tmux) wrapError(res execx.Result, args []string) error {
	stderr := strings.TrimSpace(res.Stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "duplicate session") {
		return ErrSessionExists
	}
	if strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") {
		return ErrSessionNotFound
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: exit %d", args[0], res.ExitCode)
}

// IsAvailable checks if tmux is installed and can be invoked.
func (t *Tmux) IsAvailable() bool {
	res, err := t.exec.Run([]string{"tmux", "-V"}, t.timeout)
	return err == nil && res.ExitCode == 0
}

// NewSession creates a new detached tmux session.
func (t *Tmux) NewSession(name, workDir string) error {
	args := []string{"new-session", "-d", "-s", name}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	_, err := t.run(args...)
	return err
}

// KillSession terminates a tmux session.
func (t *Tmux) KillSession(name string) error {
	_, err := t.run("kill-session", "-t", name)
	return err
}

// HasSession checks if a session exists (exact match).
// Uses "=" prefix for exact matching, preventing prefix matches
// (e.g., "parallel_P_task_child_T1" won't match a check for
// "parallel_P_task_child_T").
func (t *Tmux) HasSession(name string) (bool, error) {
	_, err := t.run("has-session", "-t", "="+name)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListSessions returns all session names.
func (t *Tmux) ListSessions() ([]string, error) {
	out, err := t.run("list-sessions", "-F", "#{session_name}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil // No server = no sessions
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// SetEnvironment sets an environment variable in the session.
func (t *Tmux) SetEnvironment(session, key, value string) error {
	_, err := t.run("set-environment", "-t", session, key, value)
	return err
}

// GetEnvironment gets an environment variable from the session.
func (t *Tmux) GetEnvironment(session, key string) (string, error) {
	out, err := t.run("show-environment", "-t", session, key)
	if err != nil {
		return "", err
	}
	// Output format: KEY=value
	parts := strings.SplitN(out, "=", 2)
	if len(parts) != 2 {
		return "", nil
	}
	return parts[1], nil
}

// SendKeysLiteral pastes content into a target in literal mode (-l): no
// key translation and no Enter. The activating keystroke is sent
// separately via SendEnter so the receiving process observes a complete
// prompt.
func (t *Tmux) SendKeysLiteral(target, content string) error {
	_, err := t.run("send-keys", "-t", target, "-l", content)
	return err
}

// SendEnter sends a discrete Enter keystroke to a target.
func (t *Tmux) SendEnter(target string) error {
	_, err := t.run("send-keys", "-t", target, "Enter")
	return err
}

// CapturePane captures the last n visible lines of a session's pane.
func (t *Tmux) CapturePane(session string, lines int) (string, error) {
	return t.run("capture-pane", "-p", "-t", session, "-S", fmt.Sprintf("-%d", lines))
}

// Target formats a send-keys target: session, optionally narrowed to a
// window and pane.
func Target(session string, window, pane *int) string {
	if window == nil {
		return session
	}
	if pane == nil {
		return fmt.Sprintf("%s:%d", session, *window)
	}
	return fmt.Sprintf("%s:%d.%d", session, *window, *pane)
}
