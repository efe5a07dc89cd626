package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "REGSYS"

// Config represents the complete application configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage" split_words:"true"`
	Hardware  HardwareConfig  `yaml:"hardware" split_words:"true"`
	Logging   LoggingConfig   `yaml:"logging" split_words:"true"`
	Server    ServerConfig    `yaml:"server" split_words:"true"`
	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
	Telemetry TelemetryConfig `yaml:"telemetry" split_words:"true"`
	Ledger    LedgerConfig    `yaml:"ledger" split_words:"true"`
}

// StorageConfig locates the persisted license slots.
type StorageConfig struct {
	// Dir defaults to DefaultStorageDir when empty.
	Dir string `yaml:"dir" split_words:"true"`
}

// HardwareConfig overrides the identifiers read from the machine. Useful in
// containers where no stable disk serial is exposed.
type HardwareConfig struct {
	DiskID      string `yaml:"disk_id" split_words:"true"`
	ProcessorID string `yaml:"processor_id" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`
	Format   string `yaml:"format" split_words:"true"`
	Output   string `yaml:"output" split_words:"true"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// ServerConfig contains the loopback HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	// EnableIssue mounts the issuance endpoint. Only the combined vendor build
	// turns it on.
	EnableIssue bool `yaml:"enable_issue" split_words:"true"`
}

// RateLimitConfig throttles activation attempts.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true"`
	Burst   int     `yaml:"burst" split_words:"true"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	MetricExporter string  `yaml:"metric_exporter" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true"`
	Environment    string  `yaml:"environment" split_words:"true"`
}

// LedgerConfig locates the vendor issuance ledger.
type LedgerConfig struct {
	Path  string `yaml:"path" split_words:"true"`
	Sheet string `yaml:"sheet" split_words:"true"`
}

// Load starts from Default, decodes the optional YAML file over it and then
// applies environment variables. Struct tags carry no defaults so that unset
// variables leave file values alone, and no envconfig names: envconfig also
// reads a tag name without the prefix, so only REGSYS_* variables apply.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.Storage.Dir == "" {
		dir, err := DefaultStorageDir()
		if err != nil {
			return nil, err
		}
		cfg.Storage.Dir = dir
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes the YAML file at path over cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// configFilePath returns $REGSYS_CONFIG or the first well-known file found.
func configFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	for _, location := range []string{"regsys.yaml", "configs/regsys.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

func (c *Config) validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server addr %q: %w", c.Server.Addr, err)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", c.Telemetry.MetricExporter)
	}
	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	// Logs are always JSON.
	c.Logging.Format = "json"
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("unsupported logging output: %s", c.Logging.Output)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/regsys.log"
	}

	return nil
}

// Default returns default configuration. Storage.Dir is left empty and is
// resolved by Load.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/regsys.log",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     1,
			Burst:   5,
		},
		Telemetry: TelemetryConfig{
			MetricExporter: "prometheus",
			TraceExporter:  "none",
			SampleRatio:    1,
			Environment:    "development",
		},
		Ledger: LedgerConfig{
			Sheet: "Licenses",
		},
	}
}
