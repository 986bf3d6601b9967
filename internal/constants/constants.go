// Package constants centralizes shared defaults and environment variable
// names so components and tests agree on a single source of truth.
package constants

import "time"

// Environment variables set on every coordinator-created tmux session.
const (
	// EnvSessionName carries the canonical session name.
	EnvSessionName = "MCP_SESSION_NAME"

	// EnvSessionType is "master" or "child".
	EnvSessionType = "MCP_SESSION_TYPE"

	// EnvProjectID is the project identifier.
	EnvProjectID = "MCP_PROJECT_ID"

	// EnvTaskID is the task identifier (children only).
	EnvTaskID = "MCP_TASK_ID"

	// EnvCoordinatorActive marks sessions managed by a coordinator.
	EnvCoordinatorActive = "MCP_COORDINATOR_ACTIVE"
)

// Session type values for EnvSessionType.
const (
	SessionTypeMaster = "master"
	SessionTypeChild  = "child"
)

// Executor defaults.
const (
	// DefaultExecTimeout bounds every external command invocation.
	DefaultExecTimeout = 10 * time.Second
)

// Registry defaults.
const (
	// DefaultMessageQueueCap is the per-session message queue bound.
	// Oldest entries are dropped on overflow.
	DefaultMessageQueueCap = 100

	// DefaultMessageMaxAge is how long messages survive before the
	// reconciliation sweep removes them.
	DefaultMessageMaxAge = 24 * time.Hour

	// StaleDecayWindow is the staleness horizon for health scoring. A
	// session's score decays linearly to the floor over this window.
	StaleDecayWindow = 60 * time.Minute

	// StaleDecayFloor is the minimum staleness multiplier.
	StaleDecayFloor = 0.2
)

// Reconciliation defaults.
const (
	// DefaultReconcileInterval is the tick period of the reconciliation
	// loop.
	DefaultReconcileInterval = 5 * time.Second

	// EvictAfterMisses is how many consecutive ticks a session may be
	// absent from tmux before the registry drops it.
	EvictAfterMisses = 2
)

// Delayed sender defaults.
const (
	// DefaultSendDelay separates the content paste from the Enter
	// keystroke. Interactive terminals misorder pasted content and its
	// newline under load; the pause is empirically required.
	DefaultSendDelay = 10 * time.Second

	// DefaultMaxConcurrentSessions bounds the sender worker pool.
	DefaultMaxConcurrentSessions = 10

	// DefaultSenderQueueCap is the hard cap on total enqueued requests.
	DefaultSenderQueueCap = 1000

	// ContentRetries is the retry budget for the content phase.
	ContentRetries = 2

	// ContentRetryBase is the initial content-phase backoff.
	ContentRetryBase = 500 * time.Millisecond

	// ContentRetryMax caps the content-phase backoff.
	ContentRetryMax = 5 * time.Second

	// EnterRetries is the retry budget for the Enter phase.
	EnterRetries = 1

	// EnterRetryBase is the initial Enter-phase backoff.
	EnterRetryBase = 200 * time.Millisecond

	// EnterRetryMax caps the Enter-phase backoff.
	EnterRetryMax = 2 * time.Second
)

// Circuit breaker defaults.
const (
	// BreakerFailureThreshold opens the breaker after this many
	// consecutive failures.
	BreakerFailureThreshold = 5

	// BreakerOpenWindow is how long the breaker blocks calls once open.
	BreakerOpenWindow = 60 * time.Second

	// BreakerHalfOpenProbes is the probe budget in half-open state.
	BreakerHalfOpenProbes = 3

	// BreakerCloseSuccesses closes the breaker after this many
	// consecutive half-open successes.
	BreakerCloseSuccesses = 3
)

// WorktreeDirName is the directory under the project root that holds task
// worktrees.
const WorktreeDirName = "worktree"
