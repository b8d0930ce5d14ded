// Package config loads server configuration from an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Appwrite AppwriteConfig `yaml:"appwrite"`
	SMS      SMSConfig      `yaml:"sms"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig configures the HTTP listener and middleware.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RatePerSecond   int           `yaml:"rate_per_second"`
	RateBurst       int           `yaml:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SupabaseConfig configures the relational platform: PostgREST data API,
// GoTrue identity API, and object storage share the project URL.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	AnonKey    string `yaml:"anon_key"`
	ServiceKey string `yaml:"service_key"`
}

// AppwriteConfig configures the legacy document store.
type AppwriteConfig struct {
	Endpoint        string `yaml:"endpoint"`
	ProjectID       string `yaml:"project_id"`
	APIKey          string `yaml:"api_key"`
	DatabaseID      string `yaml:"database_id"`
	AppsCollection  string `yaml:"apps_collection"`
	UsersCollection string `yaml:"users_collection"`
}

// SMSConfig configures the SMS gateway.
type SMSConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Sender string `yaml:"sender"`
}

// RedisConfig configures the optional Redis-backed rate limiter. A blank
// Addr disables it and the in-memory limiter is used instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load reads the YAML file at path (when it exists) and applies environment
// overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RatePerSecond:   20,
			RateBurst:       40,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Appwrite: AppwriteConfig{
			DatabaseID:      "namapp",
			AppsCollection:  "apps",
			UsersCollection: "users",
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitCSV(origins)
	}
	setInt(&cfg.Server.RatePerSecond, "RATE_PER_SECOND")
	setInt(&cfg.Server.RateBurst, "RATE_BURST")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	setString(&cfg.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Supabase.AnonKey, "SUPABASE_ANON_KEY")
	setString(&cfg.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")

	setString(&cfg.Appwrite.Endpoint, "APPWRITE_ENDPOINT")
	setString(&cfg.Appwrite.ProjectID, "APPWRITE_PROJECT_ID")
	setString(&cfg.Appwrite.APIKey, "APPWRITE_API_KEY")
	setString(&cfg.Appwrite.DatabaseID, "APPWRITE_DATABASE_ID")
	setString(&cfg.Appwrite.AppsCollection, "APPWRITE_APPS_COLLECTION")
	setString(&cfg.Appwrite.UsersCollection, "APPWRITE_USERS_COLLECTION")

	setString(&cfg.SMS.URL, "SMS_GATEWAY_URL")
	setString(&cfg.SMS.APIKey, "SMS_API_KEY")
	setString(&cfg.SMS.Sender, "SMS_SENDER")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("supabase url is required (SUPABASE_URL)")
	}
	if c.Supabase.ServiceKey == "" {
		return fmt.Errorf("supabase service key is required (SUPABASE_SERVICE_KEY)")
	}
	if c.Supabase.AnonKey == "" {
		return fmt.Errorf("supabase anon key is required (SUPABASE_ANON_KEY)")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
