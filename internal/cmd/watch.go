package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/tui/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: GroupServices,
	Short:   "Live terminal dashboard of tracked sessions",
	Long: `Open a live dashboard showing every tracked session, its status,
health, and the delayed sender's counters. The view refreshes every few
seconds from a reconciling coordinator.

Keys: j/k move, g/G jump, r refresh, ? help, q quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}

	// Reconciliation keeps running underneath the TUI; its log output
	// would tear the screen, so drop it.
	c.SetLogger(func(string, ...interface{}) {})
	c.Start(cmd.Context())
	defer c.Stop()
	c.ReconcileNow()

	p := tea.NewProgram(watch.New(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fault.Wrap(fault.KindInternal, err, "running dashboard")
	}
	return nil
}
