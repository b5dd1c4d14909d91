package config

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./redscribe.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultRedditUserAgent = "RedditScraper/1.0"
	DefaultGeminiModel     = "gemini-2.0-flash"

	DefaultScraperAPIURL = "http://localhost:8080"

	// Bot rate limits: per-user /scrape commands per minute and global
	// outbound messages per second.
	DefaultScrapesPerMinute = 5
	DefaultSendsPerSecond   = 25

	DefaultSessionTTLMinutes = 10

	DefaultLogLevel = "debug"
)
