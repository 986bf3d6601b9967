// Package cmd provides CLI commands for the pc tool.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/config"
	"github.com/parcoord/parcoord/internal/coord"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/style"
)

// Command groups for help output.
const (
	GroupSessions  = "sessions"
	GroupMessaging = "messaging"
	GroupServices  = "services"
)

var rootCmd = &cobra.Command{
	Use:   "pc",
	Short: "Coordinate parallel development sessions",
	Long: `pc coordinates parallel development workflows: one master tmux
session per project orchestrating child sessions, each child working on
an isolated task in its own git worktree.

Sessions follow the naming grammar:

  parallel_<project>_task_master
  parallel_<project>_task_child_<task>

State lives in memory and is reconciled against the tmux server, so pc
can always be restarted from scratch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagCwd string

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSessions, Title: "Session Commands:"},
		&cobra.Group{ID: GroupMessaging, Title: "Messaging Commands:"},
		&cobra.Group{ID: GroupServices, Title: "Service Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&flagCwd, "cwd", "", "project directory (default: current directory)")
}

// Execute runs the CLI and returns the process exit code: 0 success,
// 1 failure, 2 invalid usage, 3 tmux or git unavailable.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, style.Bad.Render("error:")+" "+err.Error())

	if errors.Is(err, coord.ErrToolUnavailable) {
		return 3
	}
	if fault.Is(err, fault.KindInvalidArgument) || isUsageError(err) {
		return 2
	}
	return 1
}

// isUsageError classifies cobra's own parse and arity failures.
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"invalid argument",
		"accepts ",
		"requires ",
		"flag needs an argument",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// projectDir resolves the --cwd flag.
func projectDir() (string, error) {
	if flagCwd != "" {
		return flagCwd, nil
	}
	return os.Getwd()
}

// newCoordinator loads configuration from the project directory and
// wires a coordinator.
func newCoordinator() (*coord.Coordinator, string, error) {
	dir, err := projectDir()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return nil, "", err
	}
	return coord.New(cfg), dir, nil
}
