// Package bot is the Telegram front end for the scraper service. It
// relays /scrape commands to the HTTP API and forwards finished batches
// to the workflow webhook.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"redscribe/scraper/internal/relay"
)

const (
	defaultScrapeLimit = 10
	defaultScrapeSort  = "hot"
	defaultScrapeTime  = "week"
	maxScrapeLimit     = 50
	previewCount       = 5
	previewTitleLen    = 80
)

const helpText = `Reddit Scraper Bot

/scrape <subreddit> [limit] [sort] [time_filter]
  Fetch posts from a subreddit.
  Example: /scrape golang 10 top week

  sort: hot, new, top, rising (default hot)
  time_filter: hour, day, week, month, year, all (top only)

After a scrape, reply with rewrite instructions for the titles,
or type 'skip' to keep the originals.`

// sender is the slice of the Telegram API the bot needs for outbound
// messages. *tgbotapi.BotAPI satisfies it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options configures the bot's access control, rate limits, and
// session lifetime.
type Options struct {
	AllowedUsers     []int64
	ScrapesPerMinute int
	SendsPerSecond   int
	SessionTTL       time.Duration
}

// Bot handles Telegram updates. Construct with NewBot and drive it
// with Run.
type Bot struct {
	tg       sender
	scraper  *ScraperClient
	relay    *relay.Client
	sessions *sessionManager
	limits   *limiters
	allowed  map[int64]bool
	logger   zerolog.Logger
}

func NewBot(tg sender, scraper *ScraperClient, relayClient *relay.Client, opts Options, logger zerolog.Logger) *Bot {
	allowed := make(map[int64]bool, len(opts.AllowedUsers))
	for _, id := range opts.AllowedUsers {
		allowed[id] = true
	}

	return &Bot{
		tg:       tg,
		scraper:  scraper,
		relay:    relayClient,
		sessions: newSessionManager(opts.SessionTTL),
		limits:   newLimiters(opts.ScrapesPerMinute, opts.SendsPerSecond),
		allowed:  allowed,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// Run consumes updates until the channel closes or the context is
// canceled. Updates without a message (edits, callbacks) are skipped.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	b.logger.Info().Msg("Bot update loop started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot update loop stopping")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info().Msg("Update channel closed")
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(ctx, msg.Chat.ID,
				"👋 Welcome to Reddit Scraper!\n\n"+
					"Use /scrape to fetch Reddit posts.\n"+
					"Example: /scrape golang 10 top week\n\n"+
					"Type /help for details.")
		case "help":
			b.reply(ctx, msg.Chat.ID, helpText)
		case "scrape":
			b.handleScrape(ctx, msg)
		default:
			b.reply(ctx, msg.Chat.ID, "🤔 Unknown command. Type /help for usage.")
		}
		return
	}

	b.handleFreeText(ctx, msg)
}

func (b *Bot) handleScrape(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if len(b.allowed) > 0 && !b.allowed[userID] {
		b.logger.Warn().Int64("user_id", userID).Msg("Access denied")
		b.reply(ctx, chatID, "❌ Access denied. Contact the operator to request access.")
		return
	}

	if !b.limits.AllowScrape(userID) {
		b.reply(ctx, chatID, "⏳ Rate limit reached. Try again in a minute.")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.reply(ctx, chatID,
			"🤔 I need a subreddit to scrape!\n\n"+
				"💡 Try: /scrape golang 10 top week\n\n"+
				"Format: /scrape <subreddit> [limit] [sort] [time_filter]")
		return
	}

	subreddit := args[0]
	limit := defaultScrapeLimit
	sort := defaultScrapeSort
	timeFilter := defaultScrapeTime

	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			b.reply(ctx, chatID, fmt.Sprintf("❌ Invalid limit. Use a number from 1 to %d.", maxScrapeLimit))
			return
		}
		if n > maxScrapeLimit {
			n = maxScrapeLimit
		}
		limit = n
	}
	if len(args) > 2 {
		sort = strings.ToLower(args[2])
	}
	if len(args) > 3 {
		timeFilter = strings.ToLower(args[3])
	}

	b.reply(ctx, chatID, fmt.Sprintf("🔍 Scraping r/%s...\n📊 Fetching %d %s posts...", subreddit, limit, sort))

	posts, err := b.scraper.Scrape(ctx, subreddit, limit, sort, timeFilter)
	if err != nil {
		b.logger.Error().Err(err).Str("subreddit", subreddit).Msg("Scrape failed")
		b.reply(ctx, chatID, fmt.Sprintf("❌ Error scraping r/%s\nPlease try again later.", subreddit))
		return
	}
	if len(posts) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("❌ No posts found in r/%s", subreddit))
		return
	}

	var preview strings.Builder
	preview.WriteString("✅ Successfully scraped!\n\nPreview:\n")
	for i, post := range posts {
		if i == previewCount {
			break
		}
		fmt.Fprintf(&preview, "%d. %s\n", i+1, previewTitle(post.Title))
	}
	if len(posts) > previewCount {
		fmt.Fprintf(&preview, "\n...and %d more posts", len(posts)-previewCount)
	}
	b.reply(ctx, chatID, preview.String())

	b.reply(ctx, chatID,
		"🤖 Would you like to rewrite these titles with AI?\n\n"+
			"Reply with instructions (e.g. 'Make them more clickbait')\n"+
			"or type 'skip' to keep originals.")

	b.sessions.Await(chatID, &relay.Batch{
		TelegramID: userID,
		ChatID:     chatID,
		Subreddit:  subreddit,
		Posts:      posts,
		Metadata: relay.BatchMetadata{
			SortType:   sort,
			TimeFilter: timeFilter,
			Count:      len(posts),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleFreeText resolves a pending batch. Text outside a scrape
// conversation is ignored.
func (b *Bot) handleFreeText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	session := b.sessions.Get(chatID)
	if session.State != StateAwaitingInstruction || session.Batch == nil {
		return
	}
	b.sessions.Reset(chatID)

	batch := session.Batch
	text := strings.TrimSpace(msg.Text)
	if strings.EqualFold(text, "skip") {
		batch.AIProcessing = false
	} else {
		batch.AIProcessing = true
		batch.AIPrompt = text
	}

	if !b.relay.Enabled() {
		b.logger.Info().
			Str("subreddit", batch.Subreddit).
			Int("posts", len(batch.Posts)).
			Bool("ai_processing", batch.AIProcessing).
			Msg("Webhook not configured, batch dropped")
		b.reply(ctx, chatID, "✅ Data processed! (workflow not configured)")
		return
	}

	b.reply(ctx, chatID, "📤 Sending to workflow...")

	response, err := b.relay.Send(ctx, batch)
	if err != nil {
		b.logger.Error().Err(err).Str("subreddit", batch.Subreddit).Msg("Webhook relay failed")
		b.reply(ctx, chatID, "⚠️ Error sending to workflow. Please try again.")
		return
	}
	b.reply(ctx, chatID, "✅ "+response)
}

// previewTitle shortens a title for the preview message, cutting at a
// rune boundary so multibyte titles stay intact.
func previewTitle(title string) string {
	if len(title) <= previewTitleLen {
		return title
	}
	cut := previewTitleLen
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut] + "..."
}

// reply sends a plain-text message, honoring the global send limiter.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.limits.WaitSend(ctx); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Send canceled while rate limited")
		return
	}
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
