package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"spiderd/internal/model"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// RodConfig configures the headless-browser fetch tier.
type RodConfig struct {
	Enabled               bool    `yaml:"enabled"`
	WebsocketURL          string  `yaml:"websocketURL"`
	TimeoutMs             int     `yaml:"timeoutMs"`
	WaitForLoad           bool    `yaml:"waitForLoad"`
	WaitForNetworkIdle    bool    `yaml:"waitForNetworkIdle"`
	AdditionalWaitSeconds float64 `yaml:"additionalWaitSeconds"`
}

// FetchConfig configures the direct HTTP client tier.
type FetchConfig struct {
	TimeoutMs int `yaml:"timeoutMs"`
}

// RetryConfig mirrors the exponential backoff handler's tuning knobs.
type RetryConfig struct {
	MaxRetries    int     `yaml:"maxRetries"`
	InitialDelay  float64 `yaml:"initialDelay"`
	MaxDelay      float64 `yaml:"maxDelay"`
	BackoffFactor float64 `yaml:"backoffFactor"`
}

// WorkerConfig holds the spider scheduler's worker-pool tuning knobs.
type WorkerConfig struct {
	MaxWorkers      int     `yaml:"maxWorkers"`
	MaxQueueSize    int     `yaml:"maxQueueSize"`
	CooldownSeconds float64 `yaml:"cooldownSeconds"`
}

// FilterConfig holds the URL/content exclusion pattern lists. Empty
// lists fall back to the package defaults.
type FilterConfig struct {
	URLExcludePatterns     []string `yaml:"urlExcludePatterns"`
	ContentExcludePatterns []string `yaml:"contentExcludePatterns"`
}

// PriorityConfig holds the priority policy's regex lists. Empty lists
// fall back to the package defaults.
type PriorityConfig struct {
	ExcludePatterns     []string `yaml:"excludePatterns"`
	HighPriorityPatterns []string `yaml:"highPriorityPatterns"`
	LowPriorityPatterns  []string `yaml:"lowPriorityPatterns"`
}

// SeedConfig holds the caller-supplied seed-source catalog. An empty
// list falls back to the default catalog.
type SeedConfig struct {
	Sources []model.SeedSource `yaml:"sources"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Rod      RodConfig      `yaml:"rod"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Retry    RetryConfig    `yaml:"retry"`
	Worker   WorkerConfig   `yaml:"worker"`
	Filter   FilterConfig   `yaml:"filter"`
	Priority PriorityConfig `yaml:"priority"`
	Seeds    SeedConfig     `yaml:"seeds"`
}

// Default returns the source's numeric defaults, used as the base before
// a config file is layered on top.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Fetch:    FetchConfig{TimeoutMs: 30000},
		Retry:    RetryConfig{MaxRetries: 3, InitialDelay: 1.0, MaxDelay: 60, BackoffFactor: 2.0},
		Worker:   WorkerConfig{MaxWorkers: 3, MaxQueueSize: 876, CooldownSeconds: 1.0},
		Rod:      RodConfig{TimeoutMs: 30000},
	}
}

// Load reads and decodes a YAML config file on top of Default.
func Load(path string) *Config {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return cfg
}

// Validate performs basic sanity checks on the loaded configuration.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Worker.MaxWorkers <= 0 {
		return fmt.Errorf("worker.maxWorkers must be positive")
	}
	if cfg.Worker.MaxQueueSize <= 0 {
		return fmt.Errorf("worker.maxQueueSize must be positive")
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be set")
	}
	return nil
}
