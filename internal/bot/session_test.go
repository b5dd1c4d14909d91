package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redscribe/scraper/internal/relay"
)

func TestSessionLifecycle(t *testing.T) {
	m := newSessionManager(10 * time.Minute)

	assert.Equal(t, StateIdle, m.Get(100).State, "unknown chats are idle")

	batch := &relay.Batch{Subreddit: "golang"}
	m.Await(100, batch)

	s := m.Get(100)
	require.Equal(t, StateAwaitingInstruction, s.State)
	assert.Same(t, batch, s.Batch)

	assert.Equal(t, StateIdle, m.Get(200).State, "sessions are per chat")

	m.Reset(100)
	assert.Equal(t, StateIdle, m.Get(100).State)
}

func TestSessionExpiry(t *testing.T) {
	m := newSessionManager(10 * time.Minute)

	now := time.Now()
	m.now = func() time.Time { return now }

	m.Await(100, &relay.Batch{Subreddit: "golang"})

	now = now.Add(9 * time.Minute)
	assert.Equal(t, StateAwaitingInstruction, m.Get(100).State)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, StateIdle, m.Get(100).State, "expired sessions are discarded on access")
	assert.Nil(t, m.Get(100).Batch)
}

func TestLimiterZeroConfigFallsBackToDefaults(t *testing.T) {
	// Misconfigured (or zeroed) env values must not crash construction
	// or produce a bucket that rejects everything.
	l := newLimiters(0, 0)

	assert.True(t, l.AllowScrape(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.WaitSend(ctx))
}

func TestLimiterScrape(t *testing.T) {
	l := newLimiters(2, 25)

	assert.True(t, l.AllowScrape(1))
	assert.True(t, l.AllowScrape(1))
	assert.False(t, l.AllowScrape(1), "burst exhausted for the user")

	assert.True(t, l.AllowScrape(2), "limits are per user")
}
