// Package config loads boardpilot configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the resolved boardpilot configuration.
type Config struct {
	User      UserConfig      `mapstructure:"user"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Store     StoreConfig     `mapstructure:"store"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Log       LogConfig       `mapstructure:"log"`
}

// UserConfig identifies the local user.
type UserConfig struct {
	ID string `mapstructure:"id"`
}

// WorkspaceConfig locates the local dashboard workspace.
type WorkspaceConfig struct {
	BoardsDir    string `mapstructure:"boards_dir"`
	TemplatesDir string `mapstructure:"templates_dir"`
	ExportDir    string `mapstructure:"export_dir"`
}

// StoreConfig locates the remote store database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AgentConfig holds copilot settings.
type AgentConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DaemonConfig tunes the background reconciler.
type DaemonConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	DebounceInterval  time.Duration `mapstructure:"debounce_interval"`
	JournalPath       string        `mapstructure:"journal_path"`
}

// MonitorConfig tunes the sync monitor server.
type MonitorConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	// Path is the log file. Empty logs to stderr.
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from the given file (empty = search the
// standard locations), layered under BOARDPILOT_* environment variables
// and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BOARDPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("boardpilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "boardpilot"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No explicit file: a missing config is fine, defaults and env
		// still apply. Anything else (parse error) is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so env overrides bind on Unmarshal.
	v.SetDefault("user.id", "")
	v.SetDefault("agent.api_key", "")
	v.SetDefault("log.path", "")
	v.SetDefault("workspace.boards_dir", "boards")
	v.SetDefault("workspace.templates_dir", "templates")
	v.SetDefault("workspace.export_dir", "exports")
	v.SetDefault("store.path", filepath.Join(".boardpilot", "store.db"))
	v.SetDefault("agent.model", "claude-sonnet-4-5")
	v.SetDefault("daemon.reconcile_interval", 30*time.Second)
	v.SetDefault("daemon.debounce_interval", 100*time.Millisecond)
	v.SetDefault("daemon.journal_path", filepath.Join(".boardpilot", "sync.jsonl"))
	v.SetDefault("monitor.port", 8484)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
}

// NewLogger builds a prefixed logger honoring the log config. When a file
// path is configured the output rotates via lumberjack; otherwise it goes
// to stderr.
func (c *Config) NewLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if c.Log.Path != "" {
		out = &lumberjack.Logger{
			Filename:   c.Log.Path,
			MaxSize:    c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAge:     c.Log.MaxAgeDays,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}
