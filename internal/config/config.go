package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logger   LoggerConfig   `yaml:"logger"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Identity IdentityConfig `yaml:"identity"`
	Chat     ChatConfig     `yaml:"chat"`
	Presence PresenceConfig `yaml:"presence"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     string        `yaml:"cors_origins"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	ServiceURL      string `yaml:"service_url"`
	AllowDevHeaders bool   `yaml:"allow_dev_headers"`
}

type IdentityConfig struct {
	Source         string        `yaml:"source"`
	UserServiceURL string        `yaml:"user_service_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ChatConfig holds room/message policy. DirectAllowedPairs entries are "role:role"
// and are applied symmetrically.
type ChatConfig struct {
	MaxMessageLength   int      `yaml:"max_message_length"`
	DefaultPageSize    int      `yaml:"default_page_size"`
	MaxPageSize        int      `yaml:"max_page_size"`
	DefaultGroupName   string   `yaml:"default_group_name"`
	DirectAllowedPairs []string `yaml:"direct_allowed_pairs"`
}

type PresenceConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type JobsConfig struct {
	StatsCron string `yaml:"stats_cron"`
}

// DefaultDirectAllowedPairs is the product policy for direct conversations
// between different roles. Same-role pairs are always allowed.
var DefaultDirectAllowedPairs = []string{
	"cadet:suo",
	"cadet:ano",
	"suo:ano",
	"alumni:cadet",
	"alumni:suo",
	"alumni:ano",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8002,
			BasePath:        "/api/chat",
			Env:             "dev",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     "*",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Enabled: false,
			URL:     "redis://localhost:6379/0",
		},
		Auth: AuthConfig{
			AllowDevHeaders: true,
		},
		Identity: IdentityConfig{
			Source:  "database",
			Timeout: 5 * time.Second,
		},
		Chat: ChatConfig{
			MaxMessageLength:   4000,
			DefaultPageSize:    50,
			MaxPageSize:        100,
			DefaultGroupName:   "Untitled Group",
			DirectAllowedPairs: append([]string(nil), DefaultDirectAllowedPairs...),
		},
		Presence: PresenceConfig{
			Backend: "memory",
			TTL:     2 * time.Minute,
		},
		Jobs: JobsConfig{
			StatsCron: "@every 1m",
		},
	}
}

// Load reads defaults, then the yaml file at path if it exists, then environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = origins
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if enabled := os.Getenv("REDIS_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if userURL := os.Getenv("USER_SERVICE_URL"); userURL != "" {
		cfg.Identity.UserServiceURL = userURL
	}
	if source := os.Getenv("IDENTITY_SOURCE"); source != "" {
		cfg.Identity.Source = source
	}
	if backend := os.Getenv("PRESENCE_BACKEND"); backend != "" {
		cfg.Presence.Backend = backend
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Server.Env))
	return env == "production" || env == "prod"
}

// IsDevelopment reports whether verbose development behaviour is wanted.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.Server.Env))
	return env == "dev" || env == "development"
}

// DevHeadersEnabled reports whether X-User-Id / X-User-Role identity headers are honoured.
// Production always disables them.
func (c *Config) DevHeadersEnabled() bool {
	return c.Auth.AllowDevHeaders && !c.IsProduction()
}

func (c *Config) Validate() error {
	if c.IsProduction() && c.Auth.JWTSecret == "" && c.Auth.ServiceURL == "" {
		return fmt.Errorf("auth.jwt_secret or auth.service_url is required in production")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Identity.Source {
	case "database":
	case "http":
		if c.Identity.UserServiceURL == "" {
			return fmt.Errorf("identity.user_service_url is required when identity.source is http")
		}
	default:
		return fmt.Errorf("unsupported identity source %q", c.Identity.Source)
	}

	switch c.Presence.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("presence backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported presence backend %q", c.Presence.Backend)
	}

	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("chat.max_message_length must be positive")
	}
	if c.Chat.DefaultPageSize < 1 || c.Chat.MaxPageSize < c.Chat.DefaultPageSize {
		return fmt.Errorf("chat page sizes must satisfy 1 <= default_page_size <= max_page_size")
	}

	for _, pair := range c.Chat.DirectAllowedPairs {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return fmt.Errorf("malformed direct_allowed_pairs entry %q", pair)
		}
	}

	return nil
}
