package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clinic/scheduler/internal/domain/scheduling"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	Store           string        `mapstructure:"STORE"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	ClinicOpeningTime  string        `mapstructure:"CLINIC_OPENING_TIME"`
	ClinicClosingTime  string        `mapstructure:"CLINIC_CLOSING_TIME"`
	ClinicStartMinutes string        `mapstructure:"CLINIC_START_MINUTES"`
	BookingLeadTime    time.Duration `mapstructure:"BOOKING_LEAD_TIME"`
	ClinicUTCOffset    string        `mapstructure:"CLINIC_UTC_OFFSET"`
}

var defaults = map[string]interface{}{
	"PORT":                 "8000",
	"ENV":                  "development",
	"STORE":                StorePostgres,
	"DB_MAX_CONNS":         10,
	"DB_MIN_CONNS":         2,
	"CACHE_TTL":            "5m",
	"RATE_LIMIT_RPS":       50,
	"RATE_LIMIT_BURST":     100,
	"REQUEST_TIMEOUT":      "10s",
	"SHUTDOWN_TIMEOUT":     "10s",
	"CLINIC_OPENING_TIME":  "09:00",
	"CLINIC_CLOSING_TIME":  "17:00",
	"CLINIC_START_MINUTES": "0,30",
	"BOOKING_LEAD_TIME":    "2h",
	"CLINIC_UTC_OFFSET":    "+00:00",
}

var envKeys = []string{
	"PORT", "ENV", "STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "CACHE_TTL", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"CLINIC_OPENING_TIME", "CLINIC_CLOSING_TIME", "CLINIC_START_MINUTES",
	"BOOKING_LEAD_TIME", "CLINIC_UTC_OFFSET",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SchedulerConfig builds and validates the clinic rules.
func (c *Config) SchedulerConfig() (scheduling.SchedulerConfig, error) {
	opening, err := scheduling.ParseTimeOfDay(c.ClinicOpeningTime)
	if err != nil {
		return scheduling.SchedulerConfig{}, fmt.Errorf("CLINIC_OPENING_TIME: %w", err)
	}
	closing, err := scheduling.ParseTimeOfDay(c.ClinicClosingTime)
	if err != nil {
		return scheduling.SchedulerConfig{}, fmt.Errorf("CLINIC_CLOSING_TIME: %w", err)
	}
	minutes, err := parseMinutes(c.ClinicStartMinutes)
	if err != nil {
		return scheduling.SchedulerConfig{}, fmt.Errorf("CLINIC_START_MINUTES: %w", err)
	}

	sc := scheduling.SchedulerConfig{
		OpeningTime:     opening,
		ClosingTime:     closing,
		StartMinutes:    minutes,
		BookingLeadTime: c.BookingLeadTime,
	}
	if err := sc.Validate(); err != nil {
		return scheduling.SchedulerConfig{}, err
	}
	return sc, nil
}

// Location is the fixed offset used for date-only requests.
func (c *Config) Location() (*time.Location, error) {
	loc, err := scheduling.ParseUTCOffset(c.ClinicUTCOffset)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_UTC_OFFSET: %w", err)
	}
	return loc, nil
}

func parseMinutes(s string) ([]int, error) {
	var minutes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid minute %q", part)
		}
		minutes = append(minutes, m)
	}
	return minutes, nil
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SIGNING_KEY must be set so that real JWT authentication is enforced.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE is %q", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"AUTH_SIGNING_KEY must be set when ENV is %q. "+
				"Refusing to start without authentication configuration", c.Env)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if _, err := c.SchedulerConfig(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
