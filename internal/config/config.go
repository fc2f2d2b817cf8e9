// Package config loads client and server settings through viper.
// Every key has a default; environment variables use the SHIFTGRID_ prefix
// with dots replaced by underscores (client.server_url → SHIFTGRID_CLIENT_SERVER_URL).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/shiftgrid/internal/client/presence"
	offline "github.com/iudanet/shiftgrid/internal/client/sync"
	"github.com/iudanet/shiftgrid/internal/rules"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SHIFTGRID"

// Config represents the complete configuration of both binaries
type Config struct {
	Client   ClientConfig    `mapstructure:"client"`
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Presence presence.Config `mapstructure:"presence"`
	Queue    offline.Config  `mapstructure:"queue"`
	Rules    RulesConfig     `mapstructure:"rules"`
	History  HistoryConfig   `mapstructure:"history"`
}

// ClientConfig controls the CLI client
type ClientConfig struct {
	// ServerURL is the base URL of the shift service
	ServerURL string `mapstructure:"server_url"`
	// Token is the bearer token issued by "shiftgrid-server token"
	Token string `mapstructure:"token"`
	// UserID and UserName identify the user in presence records
	UserID   string `mapstructure:"user_id"`
	UserName string `mapstructure:"user_name"`
	// StaffIDs limits the grid rows; empty means every staff member with a record
	StaffIDs []string `mapstructure:"staff_ids"`
	// DBPath is the local bbolt file with the offline queue and grid cache
	DBPath string `mapstructure:"db_path"`
	// RequestTimeout bounds a single HTTP call
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

// RedisConfig points to the shared presence store. Empty Addr keeps presence in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig controls the shift service
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	DBPath          string        `mapstructure:"db_path"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	RateLimit       int           `mapstructure:"rate_limit"` // изменяющих запросов на пользователя за окно
	RateWindow      time.Duration `mapstructure:"rate_window"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// File enables JSON logging into a rotated file
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RulesConfig holds the scheduling rule set
type RulesConfig struct {
	Definitions []rules.Definition `mapstructure:"definitions"`
	Debounce    time.Duration      `mapstructure:"debounce"`
}

// HistoryConfig controls the undo stack
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// Default returns a Config with all default values
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			DBPath:         "shiftgrid-client.db",
			RequestTimeout: 10 * time.Second,
			Redis:          RedisConfig{Prefix: "shiftgrid"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			DBPath:          "shiftgrid.db",
			TokenTTL:        24 * time.Hour,
			RateLimit:       120,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Presence: presence.DefaultConfig(),
		Queue:    offline.DefaultConfig(),
		Rules: RulesConfig{
			Definitions: rules.DefaultDefinitions(),
			Debounce:    rules.DefaultDebounce,
		},
		History: HistoryConfig{Capacity: 50},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Client defaults
	v.SetDefault("client.server_url", defaults.Client.ServerURL)
	v.SetDefault("client.token", defaults.Client.Token)
	v.SetDefault("client.user_id", defaults.Client.UserID)
	v.SetDefault("client.user_name", defaults.Client.UserName)
	v.SetDefault("client.staff_ids", defaults.Client.StaffIDs)
	v.SetDefault("client.db_path", defaults.Client.DBPath)
	v.SetDefault("client.request_timeout", defaults.Client.RequestTimeout)
	v.SetDefault("client.redis.addr", defaults.Client.Redis.Addr)
	v.SetDefault("client.redis.password", defaults.Client.Redis.Password)
	v.SetDefault("client.redis.prefix", defaults.Client.Redis.Prefix)
	v.SetDefault("client.redis.db", defaults.Client.Redis.DB)

	// Server defaults
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.db_path", defaults.Server.DBPath)
	v.SetDefault("server.jwt_secret", defaults.Server.JWTSecret)
	v.SetDefault("server.token_ttl", defaults.Server.TokenTTL)
	v.SetDefault("server.rate_limit", defaults.Server.RateLimit)
	v.SetDefault("server.rate_window", defaults.Server.RateWindow)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)

	// Collaboration defaults
	v.SetDefault("presence.heartbeat_interval", defaults.Presence.HeartbeatInterval)
	v.SetDefault("presence.presence_sweep_interval", defaults.Presence.PresenceSweepInterval)
	v.SetDefault("presence.presence_ttl", defaults.Presence.PresenceTTL)
	v.SetDefault("presence.lock_sweep_interval", defaults.Presence.LockSweepInterval)
	v.SetDefault("presence.lock_ttl", defaults.Presence.LockTTL)
	v.SetDefault("queue.retry_delay", defaults.Queue.RetryDelay)
	v.SetDefault("queue.max_retries", defaults.Queue.MaxRetries)
	v.SetDefault("history.capacity", defaults.History.Capacity)
	v.SetDefault("rules.debounce", defaults.Rules.Debounce)
	v.SetDefault("rules.definitions", defaults.Rules.Definitions)
}

// New creates a viper instance with defaults, environment overrides and,
// when configFile is not empty, the given config file.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}
