package rota

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lunavale/rota/store"
)

// Config is the configuration for a Session.
//
// All duration fields accept standard Go duration strings like "10s", "5m"
// when loaded from YAML.
type Config struct {
	// OperationTimeout bounds each assign/undo round-trip to the store.
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// CacheRetention is how long the last-known-good snapshot remains
	// usable as a stale fallback after the store became unreachable.
	// 0 keeps the last snapshot indefinitely.
	// Recommended: 1 hour.
	CacheRetention time.Duration `yaml:"cacheRetention"`

	// WatchRetryDelay is how long the session waits before re-establishing
	// a failed change-notification watch.
	// Recommended: 2 seconds.
	WatchRetryDelay time.Duration `yaml:"watchRetryDelay"`

	// UpdateBuffer is the per-subscriber buffer for change-notification
	// events. Subscribers that fall further behind miss intermediate
	// values; the cursor is a scalar, so last write wins.
	UpdateBuffer int `yaml:"updateBuffer"`

	// Store configures the NATS KV buckets when the session is built with
	// Connect. Ignored when stores are constructed separately.
	Store store.Config `yaml:"store"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OperationTimeout: 10 * time.Second,
		CacheRetention:   time.Hour,
		WatchRetryDelay:  2 * time.Second,
		UpdateBuffer:     16,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.CacheRetention == 0 {
		cfg.CacheRetention = defaults.CacheRetention
	}
	if cfg.WatchRetryDelay == 0 {
		cfg.WatchRetryDelay = defaults.WatchRetryDelay
	}
	if cfg.UpdateBuffer == 0 {
		cfg.UpdateBuffer = defaults.UpdateBuffer
	}
	// Note: CacheRetention < 0 is valid (treated as "keep forever" by the
	// cache), so no default is forced for negative values.
}

// Validate checks configuration constraints and returns an error for
// invalid values.
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OperationTimeout must be > 0, got %v", cfg.OperationTimeout)
	}
	if cfg.WatchRetryDelay <= 0 {
		return fmt.Errorf("WatchRetryDelay must be > 0, got %v", cfg.WatchRetryDelay)
	}
	if cfg.UpdateBuffer <= 0 {
		return fmt.Errorf("UpdateBuffer must be > 0, got %v", cfg.UpdateBuffer)
	}

	return nil
}

// LoadConfig reads a YAML configuration file, applies defaults, and
// validates the result.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Parsed configuration
//   - error: Read, parse, or validation failure
//
// Example:
//
//	cfg, err := rota.LoadConfig("rota.yaml")
//	if err != nil { /* handle */ }
//	session, err := rota.Connect(ctx, nc, &cfg)
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Timings are much shorter than production defaults to enable rapid
// iteration. Use DefaultConfig() for production deployments.
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.OperationTimeout = 2 * time.Second
	cfg.CacheRetention = time.Minute
	cfg.WatchRetryDelay = 50 * time.Millisecond

	return cfg
}
