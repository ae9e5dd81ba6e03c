// Package config handles skald configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for skald.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Timeline settings
	Timeline TimelineConfig `yaml:"timeline" mapstructure:"timeline"`

	// Transport settings
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global skald settings.
type GlobalConfig struct {
	// DataDir is where skald stores its data (default: ~/.local/share/skald).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/skald).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`

	// BusyTimeout is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path (default: DataDir/skald.log).
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TimelineConfig tunes history pagination and memory bounds.
type TimelineConfig struct {
	// PageSize is how many messages a history fetch requests.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// FetchThreshold is how close to the oldest loaded message the viewport
	// may get before the next page is fetched.
	FetchThreshold int `yaml:"fetch_threshold" mapstructure:"fetch_threshold"`

	// MessageBudget caps messages kept in memory per conversation.
	MessageBudget int `yaml:"message_budget" mapstructure:"message_budget"`

	// ConversationBudget caps conversations holding a live timeline.
	ConversationBudget int `yaml:"conversation_budget" mapstructure:"conversation_budget"`
}

// TransportConfig contains event-source settings.
type TransportConfig struct {
	// Offline runs against a local in-memory source instead of a service.
	Offline bool `yaml:"offline" mapstructure:"offline"`

	// EnvFile is an optional dotenv file with service credentials.
	EnvFile string `yaml:"env_file" mapstructure:"env_file"`

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows timestamps next to messages.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "skald"),
			ConfigDir: filepath.Join(homeDir, ".config", "skald"),
		},
		Database: DatabaseConfig{
			Path:           "", // Will be set to DataDir/skald.db
			MaxConnections: 10,
			BusyTimeoutMs:  5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			EnableCaller: false,
		},
		Timeline: TimelineConfig{
			PageSize:           50,
			FetchThreshold:     2,
			MessageBudget:      4000,
			ConversationBudget: 16,
		},
		Transport: TransportConfig{
			Offline:        false,
			ConnectTimeout: 30 * time.Second,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1")
	}

	if c.Timeline.PageSize < 1 {
		return fmt.Errorf("timeline.page_size must be at least 1")
	}

	if c.Timeline.FetchThreshold < 0 {
		return fmt.Errorf("timeline.fetch_threshold must not be negative")
	}

	if c.Timeline.MessageBudget < c.Timeline.PageSize {
		return fmt.Errorf("timeline.message_budget must hold at least one page")
	}

	if c.Timeline.ConversationBudget < 1 {
		return fmt.Errorf("timeline.conversation_budget must be at least 1")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
		c.SessionsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "skald.db")
}

// LogFilePath returns the log file path.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.DataDir, "skald.log")
}

// SessionsDir returns the directory holding sealed session blobs.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.Global.DataDir, "sessions")
}

// AccountsPath returns the account registry file path.
func (c *Config) AccountsPath() string {
	return filepath.Join(c.Global.ConfigDir, "accounts.json")
}
