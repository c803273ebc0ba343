// Package config loads process-level configuration for the daemon: the
// listen address, JWT secret, argon2 parameters, storage DSNs, the shell
// sandbox rule file, and provider credentials, per SPEC_FULL.md §A. It is
// a plain Go struct populated from an optional YAML file with environment
// variable expansion and override, mirroring the teacher's
// internal/config.Load shape narrowed to this core's surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Tools    ToolsConfig    `yaml:"tools"`
	LLM      LLMConfig      `yaml:"llm"`

	// Sections holds arbitrary named sections read from the external
	// TOML agent-config surface spec.md §6 describes (e.g. [imap_email]).
	// This core never defines that file's schema; it only exposes
	// whatever keys an operator has placed here.
	Sections map[string]map[string]string `yaml:"sections"`
}

// ServerConfig controls the daemon's HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// AuthConfig controls JWT issuance and argon2id password hashing (§3, §4.7).
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	Argon2Time     uint32 `yaml:"argon2_time"`
	Argon2MemoryKB uint32 `yaml:"argon2_memory_kb"`
	Argon2Threads  uint8  `yaml:"argon2_threads"`
}

// DatabaseConfig names the storage backends the closed tool set's SQL
// handlers connect to (§4.3).
type DatabaseConfig struct {
	SQLiteDSN   string `yaml:"sqlite_dsn"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ToolsConfig controls tool-dispatch-wide settings.
type ToolsConfig struct {
	SandboxRulesPath string `yaml:"sandbox_rules_path"`
	BaseDir          string `yaml:"base_dir"`
}

// LLMConfig names the configured provider connection (§4.1).
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	AWSRegion string `yaml:"aws_region"`
}

// ConfigSection returns the raw key/value pairs for a named external
// config section (e.g. "imap_email"), or nil if the section is absent.
// This is the narrow accessor SPEC_FULL.md §A describes: the core reads
// the keys it needs without owning that file's schema.
func (c *Config) ConfigSection(name string) map[string]string {
	if c == nil {
		return nil
	}
	return c.Sections[name]
}

// Load reads path (if non-empty) as YAML, expanding ${VAR} references
// against the process environment, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MANAGER_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("MANAGER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("MANAGER_SQLITE_DSN"); v != "" {
		cfg.Database.SQLiteDSN = v
	}
	if v := os.Getenv("MANAGER_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("MANAGER_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("MANAGER_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("MANAGER_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MANAGER_TOOLS_BASE_DIR"); v != "" {
		cfg.Tools.BaseDir = v
	}
	if v := os.Getenv("MANAGER_ARGON2_TIME"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Auth.Argon2Time = uint32(n)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Database.SQLiteDSN == "" {
		cfg.Database.SQLiteDSN = "file:manager.db?_pragma=busy_timeout(5000)"
	}
	if cfg.Tools.BaseDir == "" {
		cfg.Tools.BaseDir = "."
	}
	// Argon2id parameters per §3: fixed defaults, overridable for tests.
	if cfg.Auth.Argon2Time == 0 {
		cfg.Auth.Argon2Time = 2
	}
	if cfg.Auth.Argon2MemoryKB == 0 {
		cfg.Auth.Argon2MemoryKB = 19456
	}
	if cfg.Auth.Argon2Threads == 0 {
		cfg.Auth.Argon2Threads = 1
	}
}
