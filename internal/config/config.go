// Package config loads service configuration in layers: built-in defaults,
// an optional YAML file, then environment variables (a .env file is read
// into the environment first unless ENV_CHEK is set).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Queue    QueueConfig    `koanf:"queue"`
	External ExternalConfig `koanf:"external"`
	Logging  LoggingConfig  `koanf:"logging"`
	Tasks    TasksConfig    `koanf:"tasks"`
}

type ServerConfig struct {
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
	GinMode     string   `koanf:"gin_mode"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// DSN формирует строку подключения к Postgres.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// Channel prefix for realtime events, "<prefix><session_id>".
	ChannelPrefix string `koanf:"channel_prefix"`
}

type AuthConfig struct {
	AccessSecret string `koanf:"access_secret"`
}

type QueueConfig struct {
	DefaultCapacity       int           `koanf:"default_capacity"`
	DefaultServiceMinutes float64       `koanf:"default_service_minutes"`
	OperationTimeout      time.Duration `koanf:"operation_timeout"`
	Timezone              string        `koanf:"timezone"`
	NotifierBuffer        int           `koanf:"notifier_buffer"`
	DefaultPageSize       int           `koanf:"default_page_size"`
	MaxPageSize           int           `koanf:"max_page_size"`
}

// Location returns the configured timezone, falling back to time.Local.
func (q QueueConfig) Location() *time.Location {
	if q.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type ExternalConfig struct {
	AppointmentsURL string        `koanf:"appointments_url"`
	DirectoryURL    string        `koanf:"directory_url"`
	Timeout         time.Duration `koanf:"timeout"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type TasksConfig struct {
	CloseDaySpec string `koanf:"close_day_spec"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
			GinMode:     "release",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "gov_queue",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Enabled:       true,
			Addr:          "localhost:6379",
			ChannelPrefix: "queue:session:",
		},
		Queue: QueueConfig{
			DefaultCapacity:       100,
			DefaultServiceMinutes: 30,
			OperationTimeout:      5 * time.Second,
			NotifierBuffer:        256,
			DefaultPageSize:       20,
			MaxPageSize:           100,
		},
		External: ExternalConfig{
			Timeout:  5 * time.Second,
			CacheTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tasks: TasksConfig{
			// секунды включены (cron.WithSeconds), каждый день в 00:05
			CloseDaySpec: "0 5 0 * * *",
		},
	}
}

// Load собирает конфигурацию: defaults -> YAML -> env.
func Load() (*Config, error) {
	if os.Getenv("ENV_CHEK") == "" {
		// .env необязателен, переменные могут прийти из окружения
		_ = godotenv.Load()
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if v, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(v)); err != nil {
			return nil, fmt.Errorf("failed to set cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings keeps the variable names the service has always used
// (DB_HOST, JWT_ACCESS_SECRET, ...) working next to the nested koanf paths.
var envMappings = map[string]string{
	"db_host":                 "database.host",
	"db_port":                 "database.port",
	"db_user":                 "database.user",
	"db_password":             "database.password",
	"db_name":                 "database.name",
	"db_sslmode":              "database.sslmode",
	"redis_enabled":           "redis.enabled",
	"redis_addr":              "redis.addr",
	"redis_password":          "redis.password",
	"redis_db":                "redis.db",
	"jwt_access_secret":       "auth.access_secret",
	"http_port":               "server.port",
	"cors_origins":            "server.cors_origins",
	"gin_mode":                "server.gin_mode",
	"queue_default_capacity":  "queue.default_capacity",
	"queue_service_minutes":   "queue.default_service_minutes",
	"queue_operation_timeout": "queue.operation_timeout",
	"queue_timezone":          "queue.timezone",
	"notifier_buffer":         "queue.notifier_buffer",
	"appointments_url":        "external.appointments_url",
	"directory_url":           "external.directory_url",
	"external_timeout":        "external.timeout",
	"directory_cache_ttl":     "external.cache_ttl",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
	"log_caller":              "logging.caller",
	"close_day_spec":          "tasks.close_day_spec",
}

// envTransformFunc maps known variables and drops everything else, so
// unrelated environment (PATH, HOME...) never reaches the config tree.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks values the service cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if len(c.Server.CORSOrigins) == 0 {
		errs = append(errs, errors.New("server.cors_origins must not be empty"))
	}
	if c.Queue.DefaultCapacity <= 0 {
		errs = append(errs, errors.New("queue.default_capacity must be positive"))
	}
	if c.Queue.DefaultServiceMinutes <= 0 {
		errs = append(errs, errors.New("queue.default_service_minutes must be positive"))
	}
	if c.Queue.OperationTimeout <= 0 {
		errs = append(errs, errors.New("queue.operation_timeout must be positive"))
	}
	if c.Queue.Timezone != "" {
		if _, err := time.LoadLocation(c.Queue.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("queue.timezone: %w", err))
		}
	}
	if c.Queue.MaxPageSize < c.Queue.DefaultPageSize {
		errs = append(errs, errors.New("queue.max_page_size must be >= default_page_size"))
	}
	return errors.Join(errs...)
}
