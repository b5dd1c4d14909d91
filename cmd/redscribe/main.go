package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"redscribe/scraper/internal/bot"
	"redscribe/scraper/internal/config"
	"redscribe/scraper/internal/database"
	"redscribe/scraper/internal/fetch"
	"redscribe/scraper/internal/relay"
	"redscribe/scraper/internal/rewrite"
	"redscribe/scraper/internal/server"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := config.DefaultConfig()

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", cfg.DBPath,
		"Path to the SQLite database file (env: REDSCRIBE_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: REDSCRIBE_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: REDSCRIBE_PORT)")

	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: REDSCRIBE_LOG_LEVEL)")

	botCmd := flag.NewFlagSet("bot", flag.ExitOnError)
	botCmd.StringVar(&cfg.ScraperAPIURL, "api-url", cfg.ScraperAPIURL,
		"Base URL of the scraper API (env: SCRAPER_API_URL)")

	var botLogLevelStr string
	botCmd.StringVar(&botLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: REDSCRIBE_LOG_LEVEL)")

	if len(os.Args) < 2 {
		fmt.Println("Usage: redscribe [command] [options]")
		fmt.Println("Commands: server, bot")
		fmt.Println("\nFor command-specific options, use: redscribe [command] -h")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "server":
		serverCmd.Parse(os.Args[2:])

		// Handle log level parsing separately since it needs conversion
		if level, err := zerolog.ParseLevel(serverLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "bot":
		botCmd.Parse(os.Args[2:])

		// Handle log level parsing separately
		if level, err := zerolog.ParseLevel(botLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runBot(cfg); err != nil {
			log.Error().Err(err).Msg("Bot failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		fmt.Println("Usage: redscribe [command] [options]")
		fmt.Println("Commands: server, bot")
		fmt.Println("\nFor command-specific options, use: redscribe [command] -h")
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println("Available commands: server, bot")
		fmt.Println("\nFor command-specific options, use: redscribe [command] -h")
		os.Exit(1)
	}
}

// runServer starts the HTTP API server with the provided configuration.
func runServer(cfg *config.Config) error {
	log.Debug().Msg("Starting server with debug logging enabled")

	dbCfg := database.NewConfig(cfg.DBPath)
	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	fetcher, err := fetch.NewFetcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize reddit client: %w", err)
	}

	// A missing model key disables rewriting but never the service:
	// every rewrite then resolves to its fallback.
	var gen rewrite.Generator
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, title rewriting disabled")
		gen = rewrite.NewDisabledGenerator("no api key configured")
	} else {
		gen, err = rewrite.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("failed to initialize gemini client: %w", err)
		}
	}
	engine := rewrite.NewEngine(gen, rewrite.FallbackOriginalMarked)

	return server.RunServer(db, fetcher, engine, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}

// runBot starts the Telegram bot with long polling.
func runBot(cfg *config.Config) error {
	if cfg.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("Bot authorized")

	scraper := bot.NewScraperClient(cfg.ScraperAPIURL, cfg.APIKey)
	relayClient := relay.NewClient(cfg.WebhookURL)
	if !relayClient.Enabled() {
		log.Warn().Msg("N8N_WEBHOOK_URL not set, batches will not be relayed")
	}

	b := bot.NewBot(api, scraper, relayClient, bot.Options{
		AllowedUsers:     cfg.AllowedUsers,
		ScrapesPerMinute: cfg.ScrapesPerMinute,
		SendsPerSecond:   cfg.SendsPerSecond,
		SessionTTL:       cfg.SessionTTL,
	}, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		api.StopReceivingUpdates()
		cancel()
	}()

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30

	b.Run(ctx, api.GetUpdatesChan(updateCfg))
	log.Info().Msg("Bot exiting.")
	return nil
}
