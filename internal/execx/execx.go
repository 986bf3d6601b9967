// Package execx wraps external command invocation (tmux, git) with
// timeouts and structured results. It holds no state: callers decide what
// a non-zero exit code means.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/parcoord/parcoord/internal/constants"
)

// Classified executor failures. Everything else surfaces as a non-zero
// exit code in the Result.
var (
	// ErrNotFound means the binary is not installed or not on PATH.
	ErrNotFound = errors.New("executable not found")

	// ErrTimeout means the command exceeded its deadline and was killed.
	ErrTimeout = errors.New("command timed out")

	// ErrSpawn means the process could not be started.
	ErrSpawn = errors.New("spawn failed")

	// ErrInterrupted means the process died to a signal before exiting.
	ErrInterrupted = errors.New("command interrupted")
)

// Result is the structured outcome of one command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external commands. The zero value uses the default
// timeout for calls that pass zero.
type Runner struct {
	// DefaultTimeout applies when a call passes a zero timeout.
	DefaultTimeout time.Duration
}

// New creates a Runner with the standard default timeout.
func New() *Runner {
	return &Runner{DefaultTimeout: constants.DefaultExecTimeout}
}

// Run executes argv with the given timeout.
func (r *Runner) Run(argv []string, timeout time.Duration) (Result, error) {
	return r.run(argv, "", nil, timeout)
}

// RunInDir executes argv with its working directory set to dir.
func (r *Runner) RunInDir(argv []string, dir string, timeout time.Duration) (Result, error) {
	return r.run(argv, dir, nil, timeout)
}

// RunWithStdin executes argv feeding input on stdin.
func (r *Runner) RunWithStdin(argv []string, input string, timeout time.Duration) (Result, error) {
	in := []byte(input)
	return r.run(argv, "", &in, timeout)
}

func (r *Runner) run(argv []string, dir string, stdin *[]byte, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("%w: empty argv", ErrSpawn)
	}
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = constants.DefaultExecTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Stdin left nil reads from /dev/null; the child never inherits the
	// controlling terminal.
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(*stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   lossyUTF8(stdout.String()),
		Stderr:   lossyUTF8(stderr.String()),
		Duration: time.Since(start),
	}

	if err == nil {
		return res, nil
	}

	// Timeout takes precedence: CommandContext kills the child, which
	// also reports exit code -1.
	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, argv[0])
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal other than our deadline.
			res.ExitCode = -1
			return res, fmt.Errorf("%w: %s", ErrInterrupted, argv[0])
		}
		// Non-zero exit is data, not an error.
		res.ExitCode = code
		return res, nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return res, fmt.Errorf("%w: %s", ErrNotFound, argv[0])
	}

	return res, fmt.Errorf("%w: %s: %v", ErrSpawn, argv[0], err)
}

// lossyUTF8 replaces invalid byte sequences with the replacement rune so
// captured output is always valid UTF-8.
func lossyUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}
