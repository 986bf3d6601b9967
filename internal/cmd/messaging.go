package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/style"
)

var sendCmd = &cobra.Command{
	Use:     "send <from> <to> <type> <content>",
	GroupID: GroupMessaging,
	Short:   "Queue a message for a session",
	Long: `Queue a message on a session's inbox.

Types: StatusUpdate, TaskCompleted, Instruction, Query, Response, Error.
Queues are bounded; the oldest message is dropped on overflow.

Examples:
  pc send parallel_DEMO_task_master parallel_DEMO_task_child_T1 Instruction "run the tests"`,
	Args: cobra.ExactArgs(4),
	RunE: runSend,
}

var drainCmd = &cobra.Command{
	Use:     "drain <session>",
	GroupID: GroupMessaging,
	Short:   "Read and mark read a session's unread messages",
	Long: `Return all unread messages for a session in arrival order and
mark them read.

Examples:
  pc drain parallel_DEMO_task_master
  pc drain parallel_DEMO_task_master --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDrain,
}

var delayedCmd = &cobra.Command{
	Use:     "delayed <session> <content>",
	GroupID: GroupMessaging,
	Short:   "Type content into a session, then press Enter after a delay",
	Long: `Deliver content to a session's pane in two phases: paste the
text literally, wait, then send a discrete Enter keystroke. The pause
keeps interactive agents from seeing a truncated prompt.

The command blocks until the delivery settles.

Examples:
  pc delayed parallel_DEMO_task_child_T1 "describe your progress"
  pc delayed parallel_DEMO_task_child_T1 "stop" --delay 1s --priority urgent
  pc delayed parallel_DEMO_task_child_T1 "hi" --window 1 --pane 0`,
	Args: cobra.ExactArgs(2),
	RunE: runDelayed,
}

var metricsCmd = &cobra.Command{
	Use:     "metrics",
	GroupID: GroupMessaging,
	Short:   "Show delayed sender metrics",
	Long:    `Show counters for the delayed sender: queue depth, completions, failures, retries, phase timings, and circuit breaker state.`,
	Args:    cobra.NoArgs,
	RunE:    runMetrics,
}

var (
	flagDelay    time.Duration
	flagPriority string
	flagWindow   int
	flagPane     int
)

func init() {
	drainCmd.Flags().BoolVar(&flagJSON, "json", false, "JSON output")
	metricsCmd.Flags().BoolVar(&flagJSON, "json", false, "JSON output")
	delayedCmd.Flags().DurationVar(&flagDelay, "delay", 0, "pause between content and Enter (default from config)")
	delayedCmd.Flags().StringVar(&flagPriority, "priority", "normal", "low, normal, high, or urgent")
	delayedCmd.Flags().IntVar(&flagWindow, "window", -1, "target window index")
	delayedCmd.Flags().IntVar(&flagPane, "pane", -1, "target pane index")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(delayedCmd)
	rootCmd.AddCommand(metricsCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}
	id, err := c.SendMessage(args[0], args[1], args[2], args[3])
	if err != nil {
		return err
	}
	fmt.Printf("%s queued %s\n", style.Good.Render("✓"), style.Dim.Render(id))
	return nil
}

func runDrain(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}
	msgs := c.DrainMessages(args[0])
	if flagJSON {
		return printJSON(msgs)
	}
	if len(msgs) == 0 {
		fmt.Println(style.Dim.Render("no unread messages"))
		return nil
	}
	for _, m := range msgs {
		fmt.Printf("%s %s %s %s\n",
			style.Dim.Render(m.CreatedAt.Format(time.Kitchen)),
			style.Bold.Render(string(m.Type)),
			style.Dim.Render("from "+m.From),
			m.Content)
	}
	return nil
}

func runDelayed(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}

	ctx := cmd.Context()
	c.Start(ctx)
	defer c.Stop()

	var window, pane *int
	if flagWindow >= 0 {
		window = &flagWindow
	}
	if flagPane >= 0 {
		pane = &flagPane
	}

	id, err := c.SendDelayed(args[0], args[1], flagDelay, flagPriority, window, pane)
	if err != nil {
		return err
	}
	fmt.Printf("%s request %s\n", style.Dim.Render("·"), style.Dim.Render(id))

	// One-shot invocation: poll until the request settles. Settled
	// requests are forgotten, so a lookup failure means terminal.
	for {
		if _, err := c.DelayedStatus(id); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			c.CancelDelayed(id)
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	if m := c.Metrics(); m.Failed > 0 {
		return fmt.Errorf("delivery to %s failed", args[0])
	}
	fmt.Printf("%s delivered to %s\n", style.Good.Render("✓"), args[0])
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	c, _, err := newCoordinator()
	if err != nil {
		return err
	}
	m := c.Metrics()
	if flagJSON {
		return printJSON(m)
	}

	fmt.Println(style.Bold.Render("Delayed sender"))
	table := style.NewTable(
		style.Column{Name: "METRIC", Width: 16},
		style.Column{Name: "VALUE", Width: 12, Align: style.AlignRight},
	).SetHeaderSeparator(false)
	table.AddRow("enqueued", fmt.Sprintf("%d", m.Enqueued))
	table.AddRow("completed", fmt.Sprintf("%d", m.Completed))
	table.AddRow("failed", fmt.Sprintf("%d", m.Failed))
	table.AddRow("cancelled", fmt.Sprintf("%d", m.Cancelled))
	table.AddRow("retries", fmt.Sprintf("%d", m.Retries))
	table.AddRow("queue depth", fmt.Sprintf("%d", m.QueueDepth))
	table.AddRow("success rate", fmt.Sprintf("%.0f%%", m.SuccessRate*100))
	table.AddRow("phase A avg", m.PhaseAAvg.String())
	table.AddRow("breaker", m.BreakerState)
	fmt.Print(table.Render())
	return nil
}
