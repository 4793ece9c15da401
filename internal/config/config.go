/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the print-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisSessionPrefix   string `mapstructure:"REDIS_SESSION_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`
	AllowedOrigins       string `mapstructure:"ALLOWED_ORIGINS"`
	Currency             string `mapstructure:"CURRENCY"`
	CostPerPagePoisha    int64  `mapstructure:"COST_PER_PAGE_POISHA"`
	SessionTTLHours      int    `mapstructure:"SESSION_TTL_HOURS"`
	HoldMaxAgeMinutes    int    `mapstructure:"HOLD_MAX_AGE_MINUTES"`
	HoldSweepSchedule    string `mapstructure:"HOLD_SWEEP_SCHEDULE"`
	SessionSweepSchedule string `mapstructure:"SESSION_SWEEP_SCHEDULE"`
}

// OriginList splits the comma-separated ALLOWED_ORIGINS value.
func (c Config) OriginList() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CURRENCY", "BDT")
	viper.SetDefault("COST_PER_PAGE_POISHA", 200) // 2 BDT per page
	viper.SetDefault("SESSION_TTL_HOURS", 24)
	viper.SetDefault("HOLD_MAX_AGE_MINUTES", 60)
	viper.SetDefault("HOLD_SWEEP_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("SESSION_SWEEP_SCHEDULE", "0 * * * *")
	viper.SetDefault("REDIS_SESSION_PREFIX", "autoprint:session")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_SESSION_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PRINT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("ALLOWED_ORIGINS")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("COST_PER_PAGE_POISHA")
	_ = viper.BindEnv("COST_PER_PAGE")
	_ = viper.BindEnv("COST_PER_PAGE_TAKA")
	_ = viper.BindEnv("SESSION_TTL_HOURS")
	_ = viper.BindEnv("HOLD_MAX_AGE_MINUTES")
	_ = viper.BindEnv("HOLD_SWEEP_SCHEDULE")
	_ = viper.BindEnv("SESSION_SWEEP_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PRINT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisSessionPrefix = strings.TrimSpace(config.RedisSessionPrefix)
	if config.RedisSessionPrefix == "" {
		config.RedisSessionPrefix = "autoprint:session"
	}

	// Allow specifying the page cost in whole currency units via
	// COST_PER_PAGE or COST_PER_PAGE_TAKA.
	if viper.IsSet("COST_PER_PAGE") {
		costStr := strings.TrimSpace(viper.GetString("COST_PER_PAGE"))
		if costStr != "" {
			costValue, parseErr := strconv.ParseFloat(costStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid COST_PER_PAGE\" value=%q err=%v", costStr, parseErr)
			} else {
				config.CostPerPagePoisha = int64(math.Round(costValue * 100))
			}
		}
	} else if viper.IsSet("COST_PER_PAGE_TAKA") {
		costStr := strings.TrimSpace(viper.GetString("COST_PER_PAGE_TAKA"))
		if costStr != "" {
			costValue, parseErr := strconv.ParseFloat(costStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid COST_PER_PAGE_TAKA\" value=%q err=%v", costStr, parseErr)
			} else {
				config.CostPerPagePoisha = int64(math.Round(costValue * 100))
			}
		}
	}

	if config.CostPerPagePoisha <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive page cost configured; using default\" cost_poisha=%d", config.CostPerPagePoisha)
		config.CostPerPagePoisha = 200
	}
	if config.SessionTTLHours <= 0 {
		config.SessionTTLHours = 24
	}
	if config.HoldMaxAgeMinutes <= 0 {
		config.HoldMaxAgeMinutes = 60
	}
	if strings.TrimSpace(config.HoldSweepSchedule) == "" {
		config.HoldSweepSchedule = "*/10 * * * *"
	}
	if strings.TrimSpace(config.SessionSweepSchedule) == "" {
		config.SessionSweepSchedule = "0 * * * *"
	}

	return
}
