// Package config loads coordinator settings from a TOML file. Every
// field has a default; a missing file or missing keys mean defaults, so
// the coordinator runs with no configuration at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/parcoord/parcoord/internal/constants"
)

// FileName is the per-project configuration file.
const FileName = "parcoord.toml"

// Duration is a time.Duration that unmarshals from TOML strings like
// "5s" or "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration.
type Config struct {
	Workspace WorkspaceConfig `toml:"workspace"`
	Registry  RegistryConfig  `toml:"registry"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Sender    SenderConfig    `toml:"sender"`
	Exec      ExecConfig      `toml:"exec"`
}

// WorkspaceConfig shapes where task worktrees live.
type WorkspaceConfig struct {
	// WorktreeDir is the directory under the project root that holds
	// task worktrees.
	WorktreeDir string `toml:"worktree_dir"`
}

// RegistryConfig bounds the in-memory store.
type RegistryConfig struct {
	MessageQueueCap int      `toml:"message_queue_cap"`
	MessageMaxAge   Duration `toml:"message_max_age"`
}

// ReconcileConfig shapes the reconciliation loop.
type ReconcileConfig struct {
	Interval Duration `toml:"interval"`
}

// SenderConfig shapes the delayed message sender.
type SenderConfig struct {
	Delay    Duration `toml:"delay"`
	Workers  int      `toml:"workers"`
	QueueCap int      `toml:"queue_cap"`
}

// ExecConfig shapes external command execution.
type ExecConfig struct {
	Timeout Duration `toml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workspace: WorkspaceConfig{WorktreeDir: constants.WorktreeDirName},
		Registry: RegistryConfig{
			MessageQueueCap: constants.DefaultMessageQueueCap,
			MessageMaxAge:   Duration{constants.DefaultMessageMaxAge},
		},
		Reconcile: ReconcileConfig{Interval: Duration{constants.DefaultReconcileInterval}},
		Sender: SenderConfig{
			Delay:    Duration{constants.DefaultSendDelay},
			Workers:  constants.DefaultMaxConcurrentSessions,
			QueueCap: constants.DefaultSenderQueueCap,
		},
		Exec: ExecConfig{Timeout: Duration{constants.DefaultExecTimeout}},
	}
}

// Load reads the configuration at path. A missing file returns defaults;
// keys absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("loading %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}
	return cfg, nil
}

// LoadDir reads the configuration file from a project directory.
func LoadDir(dir string) (Config, error) {
	return Load(filepath.Join(dir, FileName))
}
