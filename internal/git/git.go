// Package git provides a wrapper for the git worktree operations the
// coordinator needs, via the process executor.
package git

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parcoord/parcoord/internal/execx"
)

// GitError contains raw output from a git command. The error interface
// methods provide human-readable messages; callers that need to branch
// should use Stdout/Stderr.
type GitError struct {
	Command string // the git subcommand that failed (e.g., "worktree")
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// runner is the executor surface git needs. *execx.Runner satisfies it.
type runner interface {
	RunInDir(argv []string, dir string, timeout time.Duration) (execx.Result, error)
}

// Git wraps git operations for a working directory.
type Git struct {
	exec    runner
	workDir string
	timeout time.Duration
}

// New creates a Git wrapper rooted at workDir.
func New(exec runner, workDir string) *Git {
	return &Git{exec: exec, workDir: workDir}
}

// WorkDir returns the working directory for this Git instance.
func (g *Git) WorkDir() string {
	return g.workDir
}

// run executes a git command and returns trimmed stdout.
func (g *Git) run(args ...string) (string, error) {
	argv := append([]string{"git"}, args...)
	res, err := g.exec.RunInDir(argv, g.workDir, g.timeout)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	if res.ExitCode != 0 {
		return "", g.wrapError(res, args)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// wrapError builds a GitError carrying the raw output.
func (g *Git) wrapError(res execx.Result, args []string) error {
	command := ""
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			command = arg
			break
		}
	}
	if command == "" && len(args) > 0 {
		command = args[0]
	}

	return &GitError{
		Command: command,
		Args:    args,
		Stdout:  strings.TrimSpace(res.Stdout),
		Stderr:  strings.TrimSpace(res.Stderr),
		Err:     fmt.Errorf("exit %d", res.ExitCode),
	}
}

// IsAvailable checks if git is installed and can be invoked.
func (g *Git) IsAvailable() bool {
	res, err := g.exec.RunInDir([]string{"git", "--version"}, "", g.timeout)
	return err == nil && res.ExitCode == 0
}

// IsRepo returns true if the workDir is inside a git repository.
func (g *Git) IsRepo() bool {
	_, err := g.run("rev-parse", "--git-dir")
	return err == nil
}

// CurrentBranch returns the current branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists checks if a branch exists locally.
func (g *Git) BranchExists(name string) (bool, error) {
	_, err := g.run("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		var ge *GitError
		// show-ref exits 1 with no output when the ref is absent.
		if errors.As(err, &ge) && ge.Stderr == "" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WorktreeAdd creates a new worktree at the given path with a new branch
// created from the current HEAD.
func (g *Git) WorktreeAdd(path, branch string) error {
	_, err := g.run("worktree", "add", "-b", branch, path)
	return err
}

// WorktreeRemove removes a worktree.
func (g *Git) WorktreeRemove(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run(args...)
	return err
}

// WorktreePrune removes worktree entries for deleted paths.
func (g *Git) WorktreePrune() error {
	_, err := g.run("worktree", "prune")
	return err
}

// Worktree represents a git worktree.
type Worktree struct {
	Path   string
	Branch string
	Commit string
}

// WorktreeList returns all worktrees for this repository.
func (g *Git) WorktreeList() ([]Worktree, error) {
	out, err := g.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var worktrees []Worktree
	var current Worktree

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = Worktree{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}

	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees, nil
}
