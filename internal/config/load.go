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

	// Defaults. Database URL and the bot token have no sane default and
	// must come from the environment or a config file.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("telegram.api_base_url", "")
	v.SetDefault("schedule.timezone", "Europe/Moscow")
	v.SetDefault("schedule.work_start_hour", 9)
	v.SetDefault("schedule.work_end_hour", 18)
	v.SetDefault("schedule.grace_minutes", 30)
	v.SetDefault("schedule.reminder_hour", 10)
	v.SetDefault("schedule.digest_hour", 18)
	v.SetDefault("report.admin_recipients", []string{})

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables: TASKHERD_SERVER_PORT, TASKHERD_DATABASE_URL,
	// TASKHERD_TELEGRAM_TOKEN, and so on.
	v.SetEnvPrefix("TASKHERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys to Unmarshal;
	// binding each known key makes the precedence explicit.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"telegram.token", "telegram.api_base_url",
		"schedule.timezone", "schedule.work_start_hour", "schedule.work_end_hour",
		"schedule.grace_minutes", "schedule.reminder_hour", "schedule.digest_hour",
		"report.admin_recipients",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
