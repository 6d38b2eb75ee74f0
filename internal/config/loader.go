package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// LoadConfig loads the configuration from file and environment variables.
// Precedence: defaults < config.yaml < WALLETGATE_* environment. The package
// global viper is used so WatchLogLevel observes the same file.
func LoadConfig(log logger.Logger) (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/walletgate/")
	viper.AddConfigPath("$HOME/.walletgate")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapError(err, constants.ErrCodeInternal, "failed to read config file")
		}
		// No config file is fine: defaults plus environment apply.
	}

	viper.SetEnvPrefix("WALLETGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapError(err, constants.ErrCodeInternal, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapError(err, constants.ErrCodeInvalidRequest, "invalid configuration")
	}

	if log != nil {
		log.Info(context.Background(), "configuration loaded",
			logger.String("store_backend", cfg.Store.Backend),
			logger.String("log_level", cfg.Log.Level),
			logger.String("config_file", viper.ConfigFileUsed()),
		)
	}

	return &cfg, nil
}

// WatchLogLevel re-applies the log level when the config file changes on disk.
// Only the log level is hot-reloadable; everything else requires a restart.
func WatchLogLevel(log logger.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		level := viper.GetString("log.level")
		if level == "" {
			return
		}
		log.SetLevel(constants.LogLevel(level))
		log.Info(context.Background(), "log level reloaded",
			logger.String("level", level),
			logger.String("file", e.Name),
		)
	})
	viper.WatchConfig()
}

func setDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", constants.DefaultServicePort)
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.file_path", "walletgate.db.json")

	viper.SetDefault("redis.address", "127.0.0.1:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("vault.pbkdf2_iterations", constants.PBKDF2Iterations)

	viper.SetDefault("session.ttl", 30)

	viper.SetDefault("rate_limit.challenges_per_minute", constants.ChallengeRateLimitPerMinute)
	viper.SetDefault("rate_limit.burst_size", constants.ChallengeRateBurst)

	viper.SetDefault("refresh.balance_ttl", 60)
	viper.SetDefault("refresh.batch_size", constants.RefreshBatchSize)
	viper.SetDefault("refresh.batch_delay_ms", 500)
	viper.SetDefault("refresh.timeout_ms", 10_000)

	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.path", "walletgate-audit.log")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "stdout")
}
