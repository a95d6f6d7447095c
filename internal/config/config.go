// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Source   SourceConfig      `toml:"source"`
	Transfer TransferConfig    `toml:"transfer"`
	Snapshot SnapshotConfig    `toml:"snapshot"`
	Log      LogConfig         `toml:"log"`
	Headers  map[string]string `toml:"headers"`
}

// Duration wraps time.Duration so TOML values like "2s" decode directly.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SourceConfig controls the catalog and resolution service.
type SourceConfig struct {
	BaseURL    string   `toml:"base_url"`
	Retries    int      `toml:"retries"`
	RetryDelay Duration `toml:"retry_delay"`
}

// TransferConfig controls file downloads.
type TransferConfig struct {
	OutputRoot   string   `toml:"output_root"`
	Mirrors      []string `toml:"mirrors"`
	MinValidSize int64    `toml:"min_valid_size"`
	ValidatePDF  bool     `toml:"validate_pdf"`
	Delay        Duration `toml:"delay"`
}

// SnapshotConfig controls the local catalog database.
type SnapshotConfig struct {
	Database string `toml:"database"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Source.Retries == 0 {
		c.Source.Retries = 3
	}
	if c.Source.RetryDelay == 0 {
		c.Source.RetryDelay = Duration(2 * time.Second)
	}
	if c.Transfer.OutputRoot == "" {
		c.Transfer.OutputRoot = "./downloads"
	}
	if c.Transfer.MinValidSize == 0 {
		c.Transfer.MinValidSize = 1 << 20
	}
	if c.Transfer.Delay == 0 {
		c.Transfer.Delay = Duration(time.Second)
	}
	if c.Snapshot.Database == "" {
		c.Snapshot.Database = "./data/textfetch.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
