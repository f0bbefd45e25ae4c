package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults keep every key known to viper so environment-only values are
	// picked up during Unmarshal.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("scheduler.desired_retention", 0.9)
	v.SetDefault("scheduler.maximum_interval", 36500)
	v.SetDefault("scheduler.learning_steps", []string{"1m", "10m"})
	v.SetDefault("scheduler.relearning_steps", []string{"10m"})
	v.SetDefault("scheduler.enable_fuzz", true)
	v.SetDefault("optimizer.epochs", 5)
	v.SetDefault("optimizer.mini_batch_size", 512)
	v.SetDefault("optimizer.learning_rate", 0.04)
	v.SetDefault("optimizer.max_seq_len", 64)
	v.SetDefault("optimizer.fit_interval", "24h")

	// Optional config file; absence is fine, a malformed one is not.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables: KIOKU_SERVER_PORT overrides server.port, etc.
	v.SetEnvPrefix("KIOKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
