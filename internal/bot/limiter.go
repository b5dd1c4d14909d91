package bot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiters enforces the bot's two rate limits: a per-user token bucket
// on /scrape and a global bucket on outbound Telegram sends.
type limiters struct {
	mu      sync.Mutex
	perUser map[int64]*rate.Limiter

	scrapeRate  rate.Limit
	scrapeBurst int

	send *rate.Limiter
}

const (
	defaultScrapesPerMinute = 5
	defaultSendsPerSecond   = 25
)

func newLimiters(scrapesPerMinute, sendsPerSecond int) *limiters {
	if scrapesPerMinute <= 0 {
		scrapesPerMinute = defaultScrapesPerMinute
	}
	if sendsPerSecond <= 0 {
		sendsPerSecond = defaultSendsPerSecond
	}

	return &limiters{
		perUser:     make(map[int64]*rate.Limiter),
		scrapeRate:  rate.Every(time.Minute / time.Duration(scrapesPerMinute)),
		scrapeBurst: scrapesPerMinute,
		send:        rate.NewLimiter(rate.Limit(sendsPerSecond), sendsPerSecond),
	}
}

// AllowScrape reports whether the user may start another scrape now.
// Over-limit requests are rejected, not queued.
func (l *limiters) AllowScrape(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.perUser[userID]
	if !ok {
		lim = rate.NewLimiter(l.scrapeRate, l.scrapeBurst)
		l.perUser[userID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// WaitSend blocks until an outbound send is permitted or the context
// is done.
func (l *limiters) WaitSend(ctx context.Context) error {
	return l.send.Wait(ctx)
}
