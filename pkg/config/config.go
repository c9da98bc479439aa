package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	CORS          CORSConfig
	Log           LogConfig
	Calendar      CalendarConfig
	Compliance    ComplianceConfig
	Archival      ArchivalConfig
	Notifications NotificationConfig
	Aggregates    AggregateConfig
	Metrics       MetricsConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	LockTimeout   time.Duration
	RunMigrations bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig bounds academic term lengths and fixes the zone used to derive "today".
type CalendarConfig struct {
	MinTermDays int
	MaxTermDays int
	Timezone    string
}

// ComplianceConfig holds the submission gate policy.
type ComplianceConfig struct {
	BlockOnMissedDeadline bool
}

// ArchivalConfig schedules the term status sweep and locates stored artifacts.
type ArchivalConfig struct {
	SweepSchedule string
	SweepTimeout  time.Duration
	ArtifactsDir  string
}

// NotificationConfig selects the notifier backend and its dispatch pool.
type NotificationConfig struct {
	Driver     string
	Channel    string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// AggregateConfig tunes the event proposal count cache.
type AggregateConfig struct {
	CacheTTL time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		LockTimeout:   parseDuration(v.GetString("DB_LOCK_TIMEOUT"), 3*time.Second),
		RunMigrations: v.GetBool("DB_RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		MinTermDays: v.GetInt("TERM_MIN_DAYS"),
		MaxTermDays: v.GetInt("TERM_MAX_DAYS"),
		Timezone:    v.GetString("CALENDAR_TIMEZONE"),
	}

	cfg.Compliance = ComplianceConfig{
		BlockOnMissedDeadline: v.GetBool("BLOCK_ON_MISSED_DEADLINE"),
	}

	cfg.Archival = ArchivalConfig{
		SweepSchedule: v.GetString("ARCHIVAL_SWEEP_SCHEDULE"),
		SweepTimeout:  parseDuration(v.GetString("ARCHIVAL_SWEEP_TIMEOUT"), 4*time.Minute),
		ArtifactsDir:  v.GetString("ARTIFACTS_DIR"),
	}

	cfg.Notifications = NotificationConfig{
		Driver:     strings.ToLower(v.GetString("NOTIFIER_DRIVER")),
		Channel:    v.GetString("NOTIFIER_CHANNEL"),
		Workers:    v.GetInt("NOTIFIER_WORKERS"),
		Retries:    v.GetInt("NOTIFIER_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFIER_RETRY_DELAY"), time.Second),
	}

	cfg.Aggregates = AggregateConfig{
		CacheTTL: parseDuration(v.GetString("AGGREGATE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "org_recognition")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_LOCK_TIMEOUT", "3s")
	v.SetDefault("DB_RUN_MIGRATIONS", true)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TERM_MIN_DAYS", 180)
	v.SetDefault("TERM_MAX_DAYS", 730)
	v.SetDefault("CALENDAR_TIMEZONE", "UTC")

	v.SetDefault("BLOCK_ON_MISSED_DEADLINE", true)

	v.SetDefault("ARCHIVAL_SWEEP_SCHEDULE", "@every 1h")
	v.SetDefault("ARCHIVAL_SWEEP_TIMEOUT", "4m")
	v.SetDefault("ARTIFACTS_DIR", "./artifacts")

	v.SetDefault("NOTIFIER_DRIVER", "log")
	v.SetDefault("NOTIFIER_CHANNEL", "recognition.events")
	v.SetDefault("NOTIFIER_WORKERS", 2)
	v.SetDefault("NOTIFIER_RETRIES", 3)
	v.SetDefault("NOTIFIER_RETRY_DELAY", "1s")

	v.SetDefault("AGGREGATE_CACHE_TTL", "10m")
	v.SetDefault("ENABLE_METRICS", true)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Location resolves the configured calendar timezone, falling back to UTC.
func (c CalendarConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
