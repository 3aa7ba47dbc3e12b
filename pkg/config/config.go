package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Solver
	SolveTimeout      time.Duration `mapstructure:"SOLVE_TIMEOUT"`
	TrialSolveTimeout time.Duration `mapstructure:"TRIAL_SOLVE_TIMEOUT"`

	// Schedule cache
	ScheduleCacheTTL time.Duration `mapstructure:"SCHEDULE_CACHE_TTL"`

	// Feature Flags
	EnableScheduleCache     bool `mapstructure:"ENABLE_SCHEDULE_CACHE"`
	EnableOptimizationCheck bool `mapstructure:"ENABLE_OPTIMIZATION_CHECK"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("SOLVE_TIMEOUT", "12s")
	viper.SetDefault("TRIAL_SOLVE_TIMEOUT", "3s")
	viper.SetDefault("SCHEDULE_CACHE_TTL", "24h")
	viper.SetDefault("ENABLE_SCHEDULE_CACHE", true)
	viper.SetDefault("ENABLE_OPTIMIZATION_CHECK", true)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
