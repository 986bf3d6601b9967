package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/style"
)

var statusCmd = &cobra.Command{
	Use:     "status [session]",
	GroupID: GroupSessions,
	Short:   "Show session status",
	Long: `Show the status of one session, or of every tracked session.

The registry is reconciled against the live tmux server first, so
sessions created by other processes show up as Unknown stubs.

Examples:
  pc status
  pc status parallel_DEMO_task_child_T1
  pc status --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var childrenCmd = &cobra.Command{
	Use:     "children <parent>",
	GroupID: GroupSessions,
	Short:   "List a master's children with health scores",
	Long: `List every child bound to a master session.

Health is a score in [0,1]: the status baseline (Working 1.0 down to
Error 0.1) decayed by staleness of the last report.

Examples:
  pc children parallel_DEMO_task_master`,
	Args: cobra.ExactArgs(1),
	RunE: runChildren,
}

var reportCmd = &cobra.Command{
	Use:     "report <session> <status>",
	GroupID: GroupSessions,
	Short:   "Report a session's status",
	Long: `Report a status for a session. Meant to be run from inside the
session itself.

Statuses: Starting, Started, Working, Blocked, Error, Completed,
Terminated. Transitions follow a fixed state machine; an illegal
transition is rejected and the prior status kept. A child reporting
Completed, Blocked, or Error also queues a StatusUpdate message to its
parent.

Examples:
  pc report parallel_DEMO_task_child_T1 Working --progress 40
  pc report parallel_DEMO_task_child_T1 Completed --progress 100 --details "done"`,
	Args: cobra.ExactArgs(2),
	RunE: runReport,
}

var linkCmd = &cobra.Command{
	Use:     "link <parent> <child> <task> <project>",
	GroupID: GroupSessions,
	Short:   "Bind a child session to a master",
	Long: `Register the parent/child relationship for sessions that were
not created through pc. Idempotent for an identical binding; a child
already bound elsewhere is a conflict.

Examples:
  pc link parallel_DEMO_task_master parallel_DEMO_task_child_T1 T1 DEMO`,
	Args: cobra.ExactArgs(4),
	RunE: runLink,
}

var (
	flagJSON     bool
	flagProgress int
	flagDetails  string
)

func init() {
	statusCmd.Flags().BoolVar(&flagJSON, "json", false, "JSON output")
	childrenCmd.Flags().BoolVar(&flagJSON, "json", false, "JSON output")
	reportCmd.Flags().IntVar(&flagProgress, "progress", 0, "progress percentage [0,100]")
	reportCmd.Flags().StringVar(&flagDetails, "details", "", "free-text details")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(childrenCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(linkCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}
	c.ReconcileNow()

	if len(args) == 1 {
		s, err := c.QueryStatus(args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(s)
		}
		fmt.Println(statusLine(s))
		if s.WorktreePath != "" {
			fmt.Printf("  worktree: %s\n", s.WorktreePath)
		}
		return nil
	}

	all := c.QueryAll()
	if flagJSON {
		return printJSON(all)
	}
	if len(all) == 0 {
		fmt.Println(style.Dim.Render("no sessions"))
		return nil
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	table := style.NewTable(
		style.Column{Name: "SESSION", Width: 44},
		style.Column{Name: "ROLE", Width: 6},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "PROG", Width: 4, Align: style.AlignRight},
		style.Column{Name: "TMUX", Width: 4},
	)
	for _, name := range names {
		s := all[name]
		tmuxMark := style.Bad.Render("○")
		if s.TmuxPresent {
			tmuxMark = style.Good.Render("●")
		}
		table.AddRow(s.Name, s.Role.String(), style.Status(string(s.Status)),
			fmt.Sprintf("%d%%", s.Progress), tmuxMark)
	}
	fmt.Print(table.Render())
	return nil
}

func runChildren(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}
	c.ReconcileNow()

	children, err := c.ListChildren(args[0])
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(children)
	}
	if len(children) == 0 {
		fmt.Println(style.Dim.Render("no children"))
		return nil
	}

	table := style.NewTable(
		style.Column{Name: "TASK", Width: 16},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "PROG", Width: 4, Align: style.AlignRight},
		style.Column{Name: "HEALTH", Width: 6, Align: style.AlignRight},
		style.Column{Name: "UPDATED", Width: 10},
	)
	for _, ch := range children {
		table.AddRow(ch.TaskID, style.Status(string(ch.Status)),
			fmt.Sprintf("%d%%", ch.Progress),
			style.Health(ch.HealthScore),
			ch.LastUpdate.Format(time.Kitchen))
	}
	fmt.Print(table.Render())
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}
	c.ReconcileNow()

	if err := c.ReportStatus(args[0], args[1], flagProgress, flagDetails); err != nil {
		return err
	}
	fmt.Printf("%s %s -> %s\n", style.Good.Render("✓"), args[0], style.Status(args[1]))
	return nil
}

func runLink(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.RegisterRelationship(args[0], args[1], args[2], args[3]); err != nil {
		return err
	}
	fmt.Printf("%s %s -> %s\n", style.Good.Render("✓"), args[1], args[0])
	return nil
}

// printJSON writes indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
