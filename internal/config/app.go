package config

import (
	"botdesk/internal/logger"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Provider  ProviderConfig
	Runs      RunConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
	Models    *ModelsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	CORSAllowedOrigin string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
	CookieName      string
	CookieSecure    bool
}

// ProviderConfig holds assistant provider configuration
type ProviderConfig struct {
	// FallbackAPIKey is used when the acting user has not stored their own key
	FallbackAPIKey string
	BaseURL        string
	// StubMode replaces every remote provider call with canned data
	StubMode       bool
	ProvisionDelay time.Duration
	MaxUploadBytes int64
}

// RunConfig holds run polling policy
type RunConfig struct {
	PollInterval           time.Duration
	MaxPollAttempts        int
	WebhookMaxPollAttempts int
	ThreadFallback         string
}

// ChatConfig holds chat platform relay configuration
type ChatConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
	DedupeTTL   time.Duration
}

// RateLimitConfig holds limits for public endpoints
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute applies per client IP to the auth routes
	RequestsPerMinute int
	// WebhookPerBotPerMinute applies per bot to inbound chat platform events
	WebhookPerBotPerMinute int
}

const (
	ThreadFallbackAny      = "any"
	ThreadFallbackNotFound = "not_found"
)

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Log.Debug("No .env file found, relying on environment variables")
	}

	config := &AppConfig{}

	config.Server = ServerConfig{
		Port:              getEnvOrDefault("SERVER_PORT", "8080"),
		ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 150*time.Second),
		CORSAllowedOrigin: getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*"),
	}

	config.Database = DatabaseConfig{
		Host:           getEnvOrDefault("DB_HOST", "postgres"),
		Port:           getEnvOrDefault("DB_PORT", "5432"),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:           getEnvOrDefault("DB_NAME", "botdesk"),
		SSLMode:        getEnvOrDefault("DB_SSLMODE", "disable"),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "file://migrations"),
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
		CookieName:      getEnvOrDefault("AUTH_COOKIE_NAME", "token"),
		CookieSecure:    getEnvAsBool("AUTH_COOKIE_SECURE", false),
	}

	config.Provider = ProviderConfig{
		FallbackAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:        os.Getenv("OPENAI_BASE_URL"),
		StubMode:       getEnvAsBool("PROVIDER_STUB_MODE", false),
		ProvisionDelay: getEnvAsDuration("PROVISION_DELAY", 2*time.Second),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 32<<20)),
	}
	if config.Provider.FallbackAPIKey == "" && !config.Provider.StubMode {
		logger.Log.Warn("OPENAI_API_KEY environment variable not set, users must configure their own key")
	}

	config.Runs = RunConfig{
		PollInterval:           getEnvAsDuration("RUN_POLL_INTERVAL", time.Second),
		MaxPollAttempts:        getEnvAsInt("RUN_MAX_POLL_ATTEMPTS", 60),
		WebhookMaxPollAttempts: getEnvAsInt("WEBHOOK_MAX_POLL_ATTEMPTS", 60),
		ThreadFallback:         getEnvOrDefault("RUN_THREAD_FALLBACK", ThreadFallbackAny),
	}
	if err := config.Runs.Validate(); err != nil {
		return nil, err
	}

	config.Chat = ChatConfig{
		BaseURL:     getEnvOrDefault("CHAT_API_BASE_URL", "https://{appId}.api-{region}.cometchat.io/v3"),
		HTTPTimeout: getEnvAsDuration("CHAT_HTTP_TIMEOUT", 15*time.Second),
		DedupeTTL:   getEnvAsDuration("WEBHOOK_DEDUPE_TTL", 10*time.Minute),
	}

	config.RateLimit = RateLimitConfig{
		Enabled:                getEnvAsBool("RATE_LIMIT_ENABLED", true),
		RequestsPerMinute:      getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		WebhookPerBotPerMinute: getEnvAsInt("WEBHOOK_RATE_LIMIT_PER_MINUTE", 600),
	}

	modelsConfig, err := LoadModelsConfig(os.Getenv("ASSISTANT_MODELS_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	return config, nil
}

// Validate checks the polling policy values
func (r RunConfig) Validate() error {
	if r.PollInterval <= 0 {
		return fmt.Errorf("RUN_POLL_INTERVAL must be positive, got %s", r.PollInterval)
	}
	if r.MaxPollAttempts <= 0 || r.WebhookMaxPollAttempts <= 0 {
		return fmt.Errorf("poll attempt limits must be positive (run=%d, webhook=%d)", r.MaxPollAttempts, r.WebhookMaxPollAttempts)
	}
	switch r.ThreadFallback {
	case ThreadFallbackAny, ThreadFallbackNotFound:
		return nil
	default:
		return fmt.Errorf("RUN_THREAD_FALLBACK must be %q or %q, got %q", ThreadFallbackAny, ThreadFallbackNotFound, r.ThreadFallback)
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid boolean value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
