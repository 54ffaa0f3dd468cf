package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Nodes     []NodeConfig    `mapstructure:"nodes"`
	Container ContainerConfig `mapstructure:"container"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds deployment history database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SSHConfig holds the SSH settings used to reach nodes.
type SSHConfig struct {
	// KeyPath is the private key used for all node connections.
	KeyPath string `mapstructure:"key_path"`

	// AgentPath is where the carrack-agent binary lives on each node.
	AgentPath string `mapstructure:"agent_path"`

	// AgentBinaryPath is a local carrack-agent binary to upload to nodes
	// whose agent is missing or outdated. Empty disables the upload.
	AgentBinaryPath string `mapstructure:"agent_binary_path"`

	// CommandTimeout bounds one agent invocation including its retry
	// backoffs.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// NodeConfig describes one deployable node.
type NodeConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
}

// ContainerConfig holds default container settings applied to deploy
// requests that do not carry their own.
type ContainerConfig struct {
	// Variant is the default container driver (e.g. "tomcat9x").
	Variant string `mapstructure:"variant"`

	// Settings are raw, unexpanded container settings such as the manager
	// URL and credentials. Values may reference build variables with
	// ${VAR} syntax.
	Settings map[string]string `mapstructure:"settings"`
}

// DeployConfig holds deployment defaults.
type DeployConfig struct {
	// Attempts bounds the retry loop on the agent side.
	Attempts int `mapstructure:"attempts"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/carrack.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ssh.key_path", "")
	v.SetDefault("ssh.agent_path", "~/.carrack/agent")
	v.SetDefault("ssh.agent_binary_path", "")
	v.SetDefault("ssh.command_timeout", "10m")
	v.SetDefault("ssh.connect_timeout", "10s")
	v.SetDefault("container.variant", "")
	v.SetDefault("deploy.attempts", 0) // 0 means the domain default

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("CARRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Node returns the configured node by name.
func (c *Config) Node(name string) (NodeConfig, bool) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeConfig{}, false
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
