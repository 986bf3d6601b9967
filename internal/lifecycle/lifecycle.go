// Package lifecycle creates and terminates coordinated sessions: the
// tmux session, the git worktree for children, and the registry records
// that track them. Every mutating entry point enforces the role
// capability matrix; children must not spawn or kill sessions.
package lifecycle

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/parcoord/parcoord/internal/constants"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/names"
	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/tmux"
)

// TmuxController is the tmux surface lifecycle needs. *tmux.Tmux
// satisfies it.
type TmuxController interface {
	NewSession(name, workDir string) error
	KillSession(name string) error
	HasSession(name string) (bool, error)
	SetEnvironment(session, key, value string) error
}

// GitController is the git surface lifecycle needs, rooted at a
// repository directory. *git.Git satisfies it.
type GitController interface {
	WorktreeAdd(path, branch string) error
	WorktreeRemove(path string, force bool) error
}

// DetectCallerRole infers the caller's role from the session type
// environment variable set on coordinator-created sessions. Anything
// else is an external caller.
func DetectCallerRole() names.Role {
	switch os.Getenv(constants.EnvSessionType) {
	case constants.SessionTypeMaster:
		return names.RoleMaster
	case constants.SessionTypeChild:
		return names.RoleChild
	}
	return names.RoleUnknown
}

// Controller drives session lifecycle against tmux, git, and the
// registry.
type Controller struct {
	tmux    TmuxController
	gitFor  func(repoDir string) GitController
	reg     *registry.Registry
	caller  names.Role
	wtDir   string
	logf    func(format string, args ...interface{})
}

// New creates a controller. gitFor builds a git wrapper rooted at a
// repository directory; the caller role is read from the environment.
func New(tm TmuxController, gitFor func(repoDir string) GitController, reg *registry.Registry) *Controller {
	return &Controller{
		tmux:   tm,
		gitFor: gitFor,
		reg:    reg,
		caller: DetectCallerRole(),
		wtDir:  constants.WorktreeDirName,
		logf:   log.Printf,
	}
}

// SetCaller overrides the detected caller role.
func (c *Controller) SetCaller(role names.Role) {
	c.caller = role
}

// SetLogger overrides the logger.
func (c *Controller) SetLogger(logf func(format string, args ...interface{})) {
	if logf != nil {
		c.logf = logf
	}
}

// checkMutationAllowed enforces the capability matrix for create and
// terminate operations. Children are denied; masters and external
// callers are allowed.
func (c *Controller) checkMutationAllowed(op string) error {
	if c.caller == names.RoleChild {
		return fault.New(fault.KindSecurityViolation,
			"child sessions may not %s: nested workflows are prohibited", op)
	}
	return nil
}

// CreateMaster creates the master tmux session for a project and records
// it as Started.
func (c *Controller) CreateMaster(projectID, cwd string) (registry.Session, error) {
	if err := c.checkMutationAllowed("create sessions"); err != nil {
		return registry.Session{}, err
	}
	name, err := names.MasterName(projectID)
	if err != nil {
		return registry.Session{}, fault.Wrap(fault.KindInvalidArgument, err, "bad project id %q", projectID)
	}

	exists, err := c.tmux.HasSession(name)
	if err != nil {
		return registry.Session{}, fault.Wrap(fault.KindExternalFailure, err, "checking session %q", name)
	}
	if exists {
		return registry.Session{}, fault.New(fault.KindConflict, "session %q already exists", name)
	}

	if err := c.tmux.NewSession(name, cwd); err != nil {
		if errors.Is(err, tmux.ErrSessionExists) {
			return registry.Session{}, fault.Wrap(fault.KindConflict, err, "session %q already exists", name)
		}
		return registry.Session{}, fault.Wrap(fault.KindExternalFailure, err, "creating session %q", name)
	}

	env := [][2]string{
		{constants.EnvSessionName, name},
		{constants.EnvSessionType, constants.SessionTypeMaster},
		{constants.EnvProjectID, projectID},
		{constants.EnvCoordinatorActive, "true"},
	}
	if err := c.setSessionEnv(name, env); err != nil {
		c.killBestEffort(name)
		return registry.Session{}, fault.Wrap(fault.KindExternalFailure, err, "configuring session %q", name)
	}

	if err := c.reg.UpsertStatus(name, registry.StatusStarted, 0, ""); err != nil {
		c.killBestEffort(name)
		return registry.Session{}, err
	}
	return c.reg.QueryStatus(name)
}

// CreateChild creates an isolated workspace for a task: a new branch and
// worktree under baseCwd, a tmux session rooted in it, and the registry
// records binding the child to its project master. Failures roll back in
// reverse order so no half-created workspace is left behind.
func (c *Controller) CreateChild(projectID, taskID, baseCwd, branchName string) (registry.Session, error) {
	if err := c.checkMutationAllowed("create sessions"); err != nil {
		return registry.Session{}, err
	}
	name, err := names.ChildName(projectID, taskID)
	if err != nil {
		return registry.Session{}, fault.Wrap(fault.KindInvalidArgument, err, "bad child identifiers")
	}
	masterName, err := names.MasterName(projectID)
	if err != nil {
		return registry.Session{}, fault.Wrap(fault.KindInvalidArgument, err, "bad project id %q", projectID)
	}

	worktreeRoot := filepath.Join(baseCwd, c.wtDir)
	if err := os.MkdirAll(worktreeRoot, 0o755); err != nil {
		return registry.Session{}, fault.Wrap(fault.KindInternal, err, "creating worktree root %q", worktreeRoot)
	}
	worktreePath := filepath.Join(worktreeRoot, taskID)
	if _, err := os.Stat(worktreePath); err == nil {
		return registry.Session{}, fault.New(fault.KindConflict, "worktree %q already exists", worktreePath)
	}

	branch := branchName
	if branch == "" {
		branch = "task/" + taskID
	}

	g := c.gitFor(baseCwd)
	if err := g.WorktreeAdd(worktreePath, branch); err != nil {
		return registry.Session{}, fault.Wrap(fault.KindExternalFailure, err, "adding worktree %q", worktreePath)
	}

	// From here on every failure must undo the worktree; once the tmux
	// session is ours it is undone too.
	sessionCreated := false
	fail := func(kind fault.Kind, cause error, format string, args ...interface{}) (registry.Session, error) {
		if sessionCreated {
			c.killBestEffort(name)
		}
		if rmErr := g.WorktreeRemove(worktreePath, true); rmErr != nil {
			c.logf("lifecycle: rollback of worktree %q failed: %v", worktreePath, rmErr)
		}
		if cause != nil {
			return registry.Session{}, fault.Wrap(kind, cause, format, args...)
		}
		return registry.Session{}, fault.New(kind, format, args...)
	}

	exists, err := c.tmux.HasSession(name)
	if err != nil {
		return fail(fault.KindExternalFailure, err, "checking session %q", name)
	}
	if exists {
		return fail(fault.KindConflict, nil, "session %q already exists", name)
	}

	if err := c.tmux.NewSession(name, worktreePath); err != nil {
		return fail(fault.KindExternalFailure, err, "creating session %q", name)
	}
	sessionCreated = true

	env := [][2]string{
		{constants.EnvSessionName, name},
		{constants.EnvSessionType, constants.SessionTypeChild},
		{constants.EnvProjectID, projectID},
		{constants.EnvTaskID, taskID},
		{constants.EnvCoordinatorActive, "true"},
	}
	if err := c.setSessionEnv(name, env); err != nil {
		return fail(fault.KindExternalFailure, err, "configuring session %q", name)
	}

	if err := c.reg.RegisterRelationship(masterName, name, taskID, projectID); err != nil {
		return fail(fault.KindOf(err), err, "binding %q to %q", name, masterName)
	}
	if err := c.reg.UpsertStatus(name, registry.StatusStarted, 0, ""); err != nil {
		return fail(fault.KindOf(err), err, "recording %q", name)
	}
	if err := c.reg.SetWorkspace(name, worktreePath, branch); err != nil {
		return fail(fault.KindOf(err), err, "recording workspace for %q", name)
	}
	return c.reg.QueryStatus(name)
}

// TerminationSummary reports which cleanup steps succeeded. Partial
// failure is reported, not retried.
type TerminationSummary struct {
	Name            string
	Found           bool // a registry record existed
	TmuxKilled      bool
	WorktreeRemoved bool
	RemovedRecords  []string
	Problems        []string
}

// Terminate tears down a session: registry record frozen then removed,
// tmux session killed, child worktree removed. Terminating a master
// removes its children's records but leaves their tmux sessions running.
// Terminating an already-absent session is a no-op success.
func (c *Controller) Terminate(name string) (TerminationSummary, error) {
	if err := c.checkMutationAllowed("terminate sessions"); err != nil {
		return TerminationSummary{}, err
	}

	sum := TerminationSummary{Name: name}

	s, found := c.reg.MarkTerminated(name)
	sum.Found = found

	if err := c.tmux.KillSession(name); err != nil {
		if !errors.Is(err, tmux.ErrSessionNotFound) && !errors.Is(err, tmux.ErrNoServer) {
			sum.Problems = append(sum.Problems, fmt.Sprintf("kill tmux session: %v", err))
		}
	} else {
		sum.TmuxKilled = true
	}

	if found && s.Role == names.RoleChild && s.WorktreePath != "" {
		if _, err := os.Stat(s.WorktreePath); err == nil {
			// Worktrees are laid out as <repo>/<wtdir>/<task>, so the
			// repository is two levels up.
			repoDir := filepath.Dir(filepath.Dir(s.WorktreePath))
			if err := c.gitFor(repoDir).WorktreeRemove(s.WorktreePath, true); err != nil {
				sum.Problems = append(sum.Problems, fmt.Sprintf("remove worktree: %v", err))
			} else {
				sum.WorktreeRemoved = true
			}
		}
	}

	sum.RemovedRecords = c.reg.Remove(name)
	return sum, nil
}

// setSessionEnv applies ordered key/value pairs to a session.
func (c *Controller) setSessionEnv(name string, env [][2]string) error {
	for _, kv := range env {
		if err := c.tmux.SetEnvironment(name, kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	return nil
}

// killBestEffort kills a session during rollback, logging failures.
func (c *Controller) killBestEffort(name string) {
	if err := c.tmux.KillSession(name); err != nil &&
		!errors.Is(err, tmux.ErrSessionNotFound) && !errors.Is(err, tmux.ErrNoServer) {
		c.logf("lifecycle: rollback kill of %q failed: %v", name, err)
	}
}
