package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/style"
)

var masterCmd = &cobra.Command{
	Use:     "master <project>",
	GroupID: GroupSessions,
	Short:   "Create the master session for a project",
	Long: `Create the master tmux session for a project.

The session is created detached, named parallel_<project>_task_master,
rooted in the project directory, and registered as Started.

Examples:
  pc master DEMO
  pc master DEMO --cwd ~/src/demo`,
	Args: cobra.ExactArgs(1),
	RunE: runMaster,
}

var childCmd = &cobra.Command{
	Use:     "child <project> <task>",
	GroupID: GroupSessions,
	Short:   "Create a child session with an isolated worktree",
	Long: `Create a child session for a task.

A new branch and git worktree are created under <project>/worktree/<task>,
then a detached tmux session named parallel_<project>_task_child_<task>
is started inside the worktree and bound to the project master. If any
step fails, earlier steps are rolled back.

Examples:
  pc child DEMO T1
  pc child DEMO T1 --branch feature/login`,
	Args: cobra.ExactArgs(2),
	RunE: runChild,
}

var terminateCmd = &cobra.Command{
	Use:     "terminate <session>",
	GroupID: GroupSessions,
	Short:   "Terminate a session",
	Long: `Terminate a session: kill its tmux session, remove a child's
worktree, and drop its registry records. Terminating a master drops its
children's records but leaves their tmux sessions running. Terminating a
session that no longer exists is a no-op.

Examples:
  pc terminate parallel_DEMO_task_child_T1`,
	Args: cobra.ExactArgs(1),
	RunE: runTerminate,
}

var flagBranch string

func init() {
	childCmd.Flags().StringVar(&flagBranch, "branch", "", "branch name (default: task/<task>)")

	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(childCmd)
	rootCmd.AddCommand(terminateCmd)
}

func runMaster(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}

	s, err := c.CreateMasterSession(args[0], dir)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", style.Good.Render("✓"), s.Name)
	return nil
}

func runChild(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}

	s, err := c.CreateChildSession(args[0], args[1], dir, flagBranch)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", style.Good.Render("✓"), s.Name)
	fmt.Printf("  worktree: %s\n", s.WorktreePath)
	fmt.Printf("  branch:   %s\n", s.Branch)
	return nil
}

func runTerminate(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}
	// Populate the registry from live tmux so worktree paths and
	// children are known before the teardown.
	c.ReconcileNow()

	sum, err := c.TerminateSession(args[0])
	if err != nil {
		return err
	}

	if !sum.Found && !sum.TmuxKilled {
		fmt.Printf("%s %s was already gone\n", style.Dim.Render("·"), args[0])
		return nil
	}
	fmt.Printf("%s %s terminated\n", style.Good.Render("✓"), args[0])
	if sum.WorktreeRemoved {
		fmt.Println("  worktree removed")
	}
	for _, name := range sum.RemovedRecords {
		if name != args[0] {
			fmt.Printf("  %s unregistered\n", style.Dim.Render(name))
		}
	}
	for _, p := range sum.Problems {
		fmt.Printf("  %s %s\n", style.Warn.Render("!"), p)
	}
	return nil
}

// statusLine formats a one-line session summary.
func statusLine(s registry.Session) string {
	return fmt.Sprintf("%s  %s  %d%%", s.Name, style.Status(string(s.Status)), s.Progress)
}
