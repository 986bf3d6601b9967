package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/parcoord/parcoord/internal/config"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/style"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupServices,
	Short:   "Show the effective configuration",
	Long: `Print the effective configuration: the built-in defaults merged
with ` + config.FileName + ` from the project directory, if present.

Examples:
  pc config
  pc config --json`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&flagJSON, "json", false, "JSON output")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cfg)
	}

	path := filepath.Join(dir, config.FileName)
	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Println(style.Dim.Render("# " + path))
	} else {
		fmt.Println(style.Dim.Render("# defaults (no " + config.FileName + " found)"))
	}
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		return fault.Wrap(fault.KindInternal, err, "encoding configuration")
	}
	return nil
}
