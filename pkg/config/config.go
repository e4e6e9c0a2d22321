package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string
	LocalMode      bool

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string

	// Projects API
	ProjectsAPIURL         string
	ProjectsAuthScheme     string
	ProjectsAccessToken    string
	ProjectsRequestTimeout time.Duration
	ProjectsMaxRetries     int

	// OAuth (refresh-token grant against the projects identity provider)
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthRefreshToken string
	// TokenEncryptionKey (base64, 32 bytes) encrypts access tokens cached in Redis.
	TokenEncryptionKey string

	// Pipeline
	SyncBatchSize          int
	AggregationConcurrency int
	PriorityTopN           int
	DefaultMaxCapacityBase float64
	SkillTablePath         string

	// Worker
	WorkerHealthAddr string
	SyncInterval     time.Duration
	CapacityInterval time.Duration
	PriorityInterval time.Duration

	// Notifications
	NotifyWebhookURL string
	NotifyBroker     bool

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", defaultSQLitePath()),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		ProjectsAPIURL:         strings.TrimRight(getEnv("PROJECTS_API_URL", "https://projectsapi.zoho.com/restapi"), "/"),
		ProjectsAuthScheme:     getEnv("PROJECTS_AUTH_SCHEME", "Zoho-oauthtoken"),
		ProjectsAccessToken:    getEnv("PROJECTS_ACCESS_TOKEN", ""),
		ProjectsRequestTimeout: getDurationEnv("PROJECTS_REQUEST_TIMEOUT", 15*time.Second),
		ProjectsMaxRetries:     getIntEnv("PROJECTS_MAX_RETRIES", 5),

		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		OAuthRefreshToken: getEnv("OAUTH_REFRESH_TOKEN", ""),

		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		SyncBatchSize:          getIntEnv("SYNC_BATCH_SIZE", 50),
		AggregationConcurrency: getIntEnv("AGGREGATION_CONCURRENCY", 5),
		PriorityTopN:           getIntEnv("PRIORITY_TOP_N", 5),
		DefaultMaxCapacityBase: getFloatEnv("DEFAULT_MAX_CAPACITY_BASE", 12),
		SkillTablePath:         getEnv("SKILL_TABLE_PATH", ""),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		SyncInterval:     getDurationEnv("SYNC_INTERVAL", 15*time.Minute),
		CapacityInterval: getDurationEnv("CAPACITY_INTERVAL", 10*time.Minute),
		PriorityInterval: getDurationEnv("PRIORITY_INTERVAL", 24*time.Hour),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyBroker:     getBoolEnv("NOTIFY_BROKER", false),

		MCPAddr:      getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	// Without a DATABASE_URL everything runs against a local SQLite file.
	if cfg.DatabaseURL == "" || getBoolEnv("TEAMFLOW_LOCAL_MODE", false) {
		cfg.LocalMode = true
		cfg.DatabaseDriver = "sqlite"
	} else {
		cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", "postgres")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsLocalMode reports whether the SQLite local store is in use.
func (c *Config) IsLocalMode() bool {
	return c.LocalMode
}

// IsSQLite returns true when the SQLite driver should be used.
func (c *Config) IsSQLite() bool {
	return c.DatabaseDriver == "sqlite" || (c.DatabaseDriver == "auto" && c.LocalMode)
}

// IsPostgres returns true when the PostgreSQL driver should be used.
func (c *Config) IsPostgres() bool {
	return c.DatabaseDriver == "postgres" || (c.DatabaseDriver == "auto" && !c.LocalMode)
}

// UsesOAuth reports whether a refresh-token grant is configured.
func (c *Config) UsesOAuth() bool {
	return c.OAuthClientID != "" && c.OAuthTokenURL != "" && c.OAuthRefreshToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".teamflow", "teamflow.db")
	}
	return filepath.Join(home, ".teamflow", "teamflow.db")
}
