package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	ForceSub ForceSubConfig `mapstructure:"forcesub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	OwnerID        int64         `mapstructure:"owner_id"`
	LogChatID      int64         `mapstructure:"log_chat_id"`
	PollingTimeout int           `mapstructure:"polling_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type QuotaConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	NoticeTTL    time.Duration `mapstructure:"notice_ttl"`
}

type ForceSubConfig struct {
	MuteDuration time.Duration `mapstructure:"mute_duration"`
	NoticeTTL    time.Duration `mapstructure:"notice_ttl"`
	WelcomeTTL   time.Duration `mapstructure:"welcome_ttl"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.request_timeout", "1m")
	v.SetDefault("storage.path", "data/limitbot.db")
	v.SetDefault("quota.default_limit", 3)
	v.SetDefault("quota.notice_ttl", "30s")
	v.SetDefault("forcesub.mute_duration", "30s")
	v.SetDefault("forcesub.notice_ttl", "50s")
	v.SetDefault("forcesub.welcome_ttl", "50s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/limit-tg-bot")

	// Environment variables
	v.SetEnvPrefix("LIMITBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.OwnerID == 0 {
		return fmt.Errorf("telegram.owner_id is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Quota.DefaultLimit < 1 {
		return fmt.Errorf("quota.default_limit must be at least 1")
	}
	return nil
}
