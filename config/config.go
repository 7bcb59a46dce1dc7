package config

import (
	"fmt"
	"time"

	"github.com/marcelsud/webhook-courier/delivery"
	"github.com/spf13/viper"
)

/* Config is the process-level configuration surface, loaded from the
 * environment with optional .env file overrides
 */
type Config struct {
	Port          string `mapstructure:"PORT"`
	SecretKey     string `mapstructure:"WEBHOOK_SECRET"`
	Timeout       int    `mapstructure:"TIMEOUT_SECONDS"`
	MaxRetries    int    `mapstructure:"MAX_RETRIES"`
	RetryWaitMin  int    `mapstructure:"RETRY_WAIT_MIN_SECONDS"`
	RetryWaitMax  int    `mapstructure:"RETRY_WAIT_MAX_SECONDS"`
	MaxConcurrent int    `mapstructure:"MAX_CONCURRENT"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	TargetsFile   string `mapstructure:"TARGETS_FILE"`
}

// GetConfig loads configuration from the environment, falling back to a
// .env file in the working directory when present
func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8000")
	viper.SetDefault("TIMEOUT_SECONDS", 30)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_WAIT_MIN_SECONDS", 1)
	viper.SetDefault("RETRY_WAIT_MAX_SECONDS", 60)
	viper.SetDefault("MAX_CONCURRENT", 5)

	// A missing .env file is fine; the environment alone is enough
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// DeliveryConfig converts process configuration into the delivery
// client's config
func (c *Config) DeliveryConfig() delivery.Config {
	return delivery.Config{
		SecretKey:     c.SecretKey,
		Timeout:       time.Duration(c.Timeout) * time.Second,
		MaxRetries:    c.MaxRetries,
		RetryWaitMin:  time.Duration(c.RetryWaitMin) * time.Second,
		RetryWaitMax:  time.Duration(c.RetryWaitMax) * time.Second,
		MaxConcurrent: c.MaxConcurrent,
	}
}
