package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Telegram TelegramConfig `mapstructure:"telegram" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule" validate:"required"`
	Report   ReportConfig   `mapstructure:"report"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// TelegramConfig contains the delivery transport settings.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// APIBaseURL overrides the Bot API endpoint, mainly for tests and
	// self-hosted API servers. Empty means the production endpoint.
	APIBaseURL string `mapstructure:"api_base_url" validate:"omitempty,url"`
}

// ScheduleConfig contains the business window and reminder timing settings.
type ScheduleConfig struct {
	// Timezone is the IANA zone the business window is evaluated in.
	Timezone      string `mapstructure:"timezone" validate:"required"`
	WorkStartHour int    `mapstructure:"work_start_hour" validate:"gte=0,lt=24"`
	WorkEndHour   int    `mapstructure:"work_end_hour" validate:"gte=0,lt=24"`
	GraceMinutes  int    `mapstructure:"grace_minutes" validate:"gte=0,lt=60"`
	ReminderHour  int    `mapstructure:"reminder_hour" validate:"gte=0,lt=24"`
	DigestHour    int    `mapstructure:"digest_hour" validate:"gte=0,lt=24"`
}

// ReportConfig contains the admin reporting settings.
type ReportConfig struct {
	// AdminRecipients are the handles that receive the admin summary.
	AdminRecipients []string `mapstructure:"admin_recipients"`
}
