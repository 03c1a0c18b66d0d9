// Package config loads subsystem configuration from a YAML file with
// environment-variable overrides for deployment-specific paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all document-subsystem configuration.
type Config struct {
	// Paths configures the on-disk roots.
	Paths PathsConfig `yaml:"paths"`

	// Sandbox configures script execution limits.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Server configures the HTTP boundary.
	Server ServerConfig `yaml:"server"`

	// Logging configures categorized debug logging.
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig holds the storage roots. All are created on demand.
type PathsConfig struct {
	WorkspaceRoot string `yaml:"workspace_root"` // per-session workspaces
	SkillsRoot    string `yaml:"skills_root"`    // one directory per skill
	ArtifactsRoot string `yaml:"artifacts_root"` // payloads + metadata index
}

// SandboxConfig limits sandboxed script execution.
type SandboxConfig struct {
	DefaultTimeout string `yaml:"default_timeout"` // e.g. "30s"
	MaxOutputBytes int    `yaml:"max_output_bytes"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig mirrors logging.Settings.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the configuration used when no file is present. Roots live
// under a single data directory so a fresh checkout works with zero setup.
func Default() *Config {
	dataDir := ".stratdesk"
	return &Config{
		Paths: PathsConfig{
			WorkspaceRoot: filepath.Join(dataDir, "workspace"),
			SkillsRoot:    filepath.Join(dataDir, "skills"),
			ArtifactsRoot: filepath.Join(dataDir, "artifacts"),
		},
		Sandbox: SandboxConfig{
			DefaultTimeout: "30s",
			MaxOutputBytes: 50000,
		},
		Server: ServerConfig{
			Addr: ":8732",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Dir:       filepath.Join(dataDir, "logs"),
			Level:     "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments relocate roots without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STRATDESK_WORKSPACE_ROOT"); v != "" {
		cfg.Paths.WorkspaceRoot = v
	}
	if v := os.Getenv("STRATDESK_SKILLS_ROOT"); v != "" {
		cfg.Paths.SkillsRoot = v
	}
	if v := os.Getenv("STRATDESK_ARTIFACTS_ROOT"); v != "" {
		cfg.Paths.ArtifactsRoot = v
	}
	if v := os.Getenv("STRATDESK_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STRATDESK_DEBUG"); v == "1" || v == "true" {
		cfg.Logging.DebugMode = true
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Paths.WorkspaceRoot == "" {
		return fmt.Errorf("config: paths.workspace_root is required")
	}
	if c.Paths.SkillsRoot == "" {
		return fmt.Errorf("config: paths.skills_root is required")
	}
	if c.Paths.ArtifactsRoot == "" {
		return fmt.Errorf("config: paths.artifacts_root is required")
	}
	if _, err := c.SandboxTimeout(); err != nil {
		return err
	}
	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("config: sandbox.max_output_bytes must be positive")
	}
	return nil
}

// SandboxTimeout parses the configured default timeout.
func (c *Config) SandboxTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Sandbox.DefaultTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: sandbox.default_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: sandbox.default_timeout must be positive")
	}
	return d, nil
}
