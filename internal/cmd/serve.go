package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/lock"
	"github.com/parcoord/parcoord/internal/names"
	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/style"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: GroupServices,
	Short:   "Run the coordinator in the foreground",
	Long: `Run the coordinator in the foreground: the reconciliation loop
tracks the live tmux server and the delayed sender drains its queue.
Only one coordinator may run per project directory; a file lock under
.parcoord/ enforces that.

Stop with Ctrl-C.

Examples:
  pc serve
  pc serve --cwd ~/src/demo`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c, dir, err := newCoordinator()
	if err != nil {
		return err
	}
	if err := c.Preflight(dir); err != nil {
		return err
	}

	lockDir := filepath.Join(dir, ".parcoord")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return fault.Wrap(fault.KindInternal, err, "creating %s", lockDir)
	}
	release, ok, err := lock.TryAcquire(filepath.Join(lockDir, "serve.lock"))
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "acquiring serve lock")
	}
	if !ok {
		return fault.New(fault.KindConflict, "another coordinator is already serving %s", dir)
	}
	defer release()

	c.SetLogger(log.Printf)
	c.OnRoster(func(roster []registry.Session) {
		masters, children := 0, 0
		for _, s := range roster {
			if s.Role == names.RoleChild {
				children++
			} else {
				masters++
			}
		}
		log.Printf("roster: %d sessions (%d masters, %d children)", len(roster), masters, children)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s serving %s\n", style.Good.Render("✓"), dir)
	c.Start(ctx)
	<-ctx.Done()
	fmt.Println(style.Dim.Render("shutting down"))
	c.Stop()
	return nil
}
