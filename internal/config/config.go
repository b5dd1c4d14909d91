package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// Storage
	DBPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Reddit credentials. Username and password are optional; without
	// them the client runs in read-only (unauthenticated) mode.
	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string

	// Model API settings
	GeminiAPIKey string
	GeminiModel  string

	// Bot settings
	TelegramBotToken string
	ScraperAPIURL    string
	WebhookURL       string
	AllowedUsers     []int64
	ScrapesPerMinute int
	SendsPerSecond   int
	SessionTTL       time.Duration

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns a configuration populated from the environment,
// falling back to hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:             GetEnvString("REDSCRIBE_DB_PATH", DefaultDBPath),
		ServerHost:         GetEnvString("REDSCRIBE_HOST", DefaultServerHost),
		ServerPort:         GetEnvInt("REDSCRIBE_PORT", DefaultServerPort),
		APIKey:             GetEnvString("REDSCRIBE_API_KEY", ""),
		RedditClientID:     GetEnvString("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: GetEnvString("REDDIT_CLIENT_SECRET", ""),
		RedditUsername:     GetEnvString("REDDIT_USERNAME", ""),
		RedditPassword:     GetEnvString("REDDIT_PASSWORD", ""),
		RedditUserAgent:    GetEnvString("REDDIT_USER_AGENT", DefaultRedditUserAgent),
		GeminiAPIKey:       GetEnvString("GEMINI_API_KEY", ""),
		GeminiModel:        GetEnvString("GEMINI_MODEL", DefaultGeminiModel),
		TelegramBotToken:   GetEnvString("TELEGRAM_BOT_TOKEN", ""),
		ScraperAPIURL:      GetEnvString("SCRAPER_API_URL", DefaultScraperAPIURL),
		WebhookURL:         GetEnvString("N8N_WEBHOOK_URL", ""),
		AllowedUsers:       GetEnvInt64List("ALLOWED_USERS"),
		ScrapesPerMinute:   GetEnvInt("BOT_SCRAPES_PER_MINUTE", DefaultScrapesPerMinute),
		SendsPerSecond:     GetEnvInt("BOT_SENDS_PER_SECOND", DefaultSendsPerSecond),
		SessionTTL:         GetEnvDuration("BOT_SESSION_TTL", DefaultSessionTTLMinutes*time.Minute),
		LogLevel:           GetEnvLogLevel("REDSCRIBE_LOG_LEVEL", logLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
