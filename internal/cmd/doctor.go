package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/constants"
	"github.com/parcoord/parcoord/internal/coord"
	"github.com/parcoord/parcoord/internal/execx"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/git"
	"github.com/parcoord/parcoord/internal/lifecycle"
	"github.com/parcoord/parcoord/internal/style"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupServices,
	Short:   "Check the environment pc depends on",
	Long: `Check that tmux and git are runnable, whether the project
directory is a git repository, and what role the current session holds.

Exits 3 when a required tool is missing.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	ex := &execx.Runner{DefaultTimeout: constants.DefaultExecTimeout}

	ok := style.Good.Render("✓")
	bad := style.Bad.Render("✗")
	missing := false

	if v := toolVersion(ex, "tmux", "-V"); v != "" {
		fmt.Printf("%s tmux      %s\n", ok, style.Dim.Render(v))
	} else {
		fmt.Printf("%s tmux      not runnable\n", bad)
		missing = true
	}
	if v := toolVersion(ex, "git", "--version"); v != "" {
		fmt.Printf("%s git       %s\n", ok, style.Dim.Render(v))
	} else {
		fmt.Printf("%s git       not runnable\n", bad)
		missing = true
	}

	if !missing {
		g := git.New(ex, dir)
		if g.IsRepo() {
			branch, _ := g.CurrentBranch()
			fmt.Printf("%s repo      %s %s\n", ok, dir, style.Dim.Render("("+branch+")"))
		} else {
			fmt.Printf("%s repo      %s is not a git repository\n", style.Warn.Render("!"), dir)
		}
	}

	role := lifecycle.DetectCallerRole()
	fmt.Printf("%s role      %s\n", style.Dim.Render("·"), role.String())

	if missing {
		return fault.Wrap(fault.KindExternalFailure, coord.ErrToolUnavailable, "environment check failed")
	}
	return nil
}

// toolVersion returns the first line a tool prints for its version flag,
// or "" when the tool cannot be run.
func toolVersion(ex *execx.Runner, name, flag string) string {
	res, err := ex.Run([]string{name, flag}, 5*time.Second)
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return line
}
