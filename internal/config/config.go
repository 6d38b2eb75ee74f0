package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

// StoreConfig selects the raw key-value backend behind the secure store.
type StoreConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=memory file redis"`
	FilePath string `mapstructure:"file_path" validate:"required_if=Backend file"`
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// VaultConfig tunes the encryption key vault. Iterations below 100k weaken
// password-derived keys and are rejected.
type VaultConfig struct {
	PBKDF2Iterations int `mapstructure:"pbkdf2_iterations" validate:"gte=100000"`
}

type SessionConfig struct {
	// Secret signs session tokens (HS256). Empty means a random per-process
	// secret: sessions then do not survive restarts.
	Secret string `mapstructure:"secret"`
	TTL    int    `mapstructure:"ttl" validate:"gt=0"` // in minutes
}

type RateLimitConfig struct {
	ChallengesPerMinute int `mapstructure:"challenges_per_minute" validate:"gt=0"`
	BurstSize           int `mapstructure:"burst_size" validate:"gt=0"`
}

// RefreshConfig tunes balance refresh behavior. BatchSize bounds concurrent
// upstream fetches; the delay between batches is backpressure, not tuning.
type RefreshConfig struct {
	BalanceTTL   int `mapstructure:"balance_ttl" validate:"gt=0"` // in seconds
	BatchSize    int `mapstructure:"batch_size" validate:"gt=0"`  // chains per batch
	BatchDelayMS int `mapstructure:"batch_delay_ms" validate:"gte=0"`
	TimeoutMS    int `mapstructure:"timeout_ms" validate:"gt=0"` // per-fetch timeout
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error fatal"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// BalanceTTLDuration returns the balance cache TTL as a duration.
func (c *RefreshConfig) BalanceTTLDuration() time.Duration {
	return time.Duration(c.BalanceTTL) * time.Second
}

// BatchDelay returns the inter-batch pause as a duration.
func (c *RefreshConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c *RefreshConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SessionTTL returns the session lifetime as a duration.
func (c *SessionConfig) SessionTTL() time.Duration {
	return time.Duration(c.TTL) * time.Minute
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
