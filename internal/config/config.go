package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseURL              string
	AutoMigrate              bool
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	RateCacheTTLSeconds      int
	SubmissionLockTTLSeconds int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	ManagerPIN               string
	LogLevel                 string
	LogFormat                string
	VarianceWarnThreshold    decimal.Decimal
	Timezone                 string
}

// Load reads the process environment, optionally overlaid by a .env file in
// the working directory. Auth secrets have no defaults.
func Load() Config {
	return load(".env")
}

func load(envFile string) Config {
	v := viper.New()
	v.AutomaticEnv()
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			_ = v.ReadInConfig()
		}
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_CACHE_TTL_SECONDS", 300)
	v.SetDefault("SUBMISSION_LOCK_TTL_SECONDS", 30)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("VARIANCE_WARN_THRESHOLD", "300")
	v.SetDefault("TIMEZONE", "Asia/Kolkata")

	threshold, err := decimal.NewFromString(strings.TrimSpace(v.GetString("VARIANCE_WARN_THRESHOLD")))
	if err != nil || !threshold.IsPositive() {
		threshold = decimal.NewFromInt(300)
	}

	return Config{
		Port:                     v.GetString("PORT"),
		AllowedOrigin:            v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:              strings.TrimSpace(v.GetString("DATABASE_URL")),
		AutoMigrate:              v.GetBool("AUTO_MIGRATE"),
		RedisAddr:                strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:            v.GetString("REDIS_PASSWORD"),
		RedisDB:                  v.GetInt("REDIS_DB"),
		RateCacheTTLSeconds:      atLeast(v.GetInt("RATE_CACHE_TTL_SECONDS"), 1, 300),
		SubmissionLockTTLSeconds: atLeast(v.GetInt("SUBMISSION_LOCK_TTL_SECONDS"), 1, 30),
		AuthSecret:               strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes:    atLeast(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), 1, 480),
		ManagerPIN:               strings.TrimSpace(v.GetString("MANAGER_PIN")),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		LogFormat:                v.GetString("LOG_FORMAT"),
		VarianceWarnThreshold:    threshold,
		Timezone:                 strings.TrimSpace(v.GetString("TIMEZONE")),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Validate rejects settings that would make the server unsafe to expose.
func (c Config) Validate() error {
	var errs []error
	if len(c.AuthSecret) < 32 {
		errs = append(errs, errors.New("AUTH_SECRET must be set and at least 32 characters"))
	}
	if c.ManagerPIN == "" {
		errs = append(errs, errors.New("MANAGER_PIN must be set"))
	}
	return errors.Join(errs...)
}

func atLeast(val int, min int, fallback int) int {
	if val < min {
		return fallback
	}
	return val
}
