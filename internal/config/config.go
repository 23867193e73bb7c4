// Package config loads dispatcher settings from YAML, an optional .env file
// and DISPATCH_* environment variables, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/liquichain/contract_layer/internal/selector"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Contract ContractConfig `yaml:"contract"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Worker   WorkerConfig   `yaml:"worker"`
	Events   EventsConfig   `yaml:"events"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"DISPATCH_HTTP_ADDR"`
	RateLimit       float64       `yaml:"rate_limit" env:"DISPATCH_RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"DISPATCH_RATE_BURST"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"DISPATCH_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"DISPATCH_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"DISPATCH_HTTP_SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"DISPATCH_LOG_LEVEL"`
	Format string `yaml:"format" env:"DISPATCH_LOG_FORMAT"`
}

// DatabaseConfig selects the wallet store. An empty URL keeps wallets in
// memory.
type DatabaseConfig struct {
	URL     string `yaml:"url" env:"DISPATCH_DATABASE_URL"`
	Migrate bool   `yaml:"migrate" env:"DISPATCH_DATABASE_MIGRATE"`
}

// ContractConfig describes the contract being served. ABI and ABIPath are
// mutually exclusive.
type ContractConfig struct {
	ABI     string `yaml:"abi" env:"DISPATCH_ABI"`
	ABIPath string `yaml:"abi_path" env:"DISPATCH_ABI_PATH"`

	// Selectors is matched in document order; the first prefix hit wins.
	Selectors selector.Table `yaml:"selectors"`

	// BuiltinSelectors appends the built-in token handler routes after
	// Selectors.
	BuiltinSelectors bool `yaml:"builtin_selectors" env:"DISPATCH_BUILTIN_SELECTORS"`
}

type DispatchConfig struct {
	// Timeout bounds each handler invocation; 0 means no bound.
	Timeout time.Duration `yaml:"timeout" env:"DISPATCH_TIMEOUT"`
}

type WorkerConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent" env:"DISPATCH_WORKER_MAX_CONCURRENT"`
	QueueSize      int           `yaml:"queue_size" env:"DISPATCH_WORKER_QUEUE_SIZE"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" env:"DISPATCH_WORKER_ACQUIRE_TIMEOUT"`
}

type EventsConfig struct {
	BufferSize int `yaml:"buffer_size" env:"DISPATCH_EVENTS_BUFFER_SIZE"`
}

// Default returns a configuration that validates and serves the built-in
// handlers with an in-memory wallet store.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateLimit:       50,
			RateBurst:       100,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Contract: ContractConfig{
			BuiltinSelectors: true,
		},
		Worker: WorkerConfig{
			MaxConcurrent:  64,
			QueueSize:      1024,
			AcquireTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			BufferSize: 1000,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), envFiles (".env" when none are given; missing files are
// ignored) and the process environment, then validates it.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return fmt.Errorf("http.rate_limit and http.rate_burst must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	if c.Contract.ABI != "" && c.Contract.ABIPath != "" {
		return fmt.Errorf("contract.abi and contract.abi_path are mutually exclusive")
	}
	if _, err := c.Contract.Selectors.Registry(); err != nil {
		return fmt.Errorf("contract.selectors: %w", err)
	}
	if c.Dispatch.Timeout < 0 {
		return fmt.Errorf("dispatch.timeout must not be negative")
	}
	if c.Worker.MaxConcurrent < 0 || c.Worker.QueueSize < 0 || c.Worker.AcquireTimeout < 0 {
		return fmt.Errorf("worker limits must not be negative")
	}
	if c.Events.BufferSize < 0 {
		return fmt.Errorf("events.buffer_size must not be negative")
	}
	return nil
}

// ContractABI returns the configured ABI document, reading ABIPath when set.
// It returns "" when neither is configured.
func (c *Config) ContractABI() (string, error) {
	if c.Contract.ABIPath == "" {
		return c.Contract.ABI, nil
	}
	data, err := os.ReadFile(c.Contract.ABIPath)
	if err != nil {
		return "", fmt.Errorf("failed to read contract ABI: %w", err)
	}
	return string(data), nil
}
