package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"redscribe/scraper/internal/config"
	"redscribe/scraper/internal/models"
)

// MaxLimit caps the number of posts returned by a single fetch, no matter
// what the caller asked for.
const MaxLimit = 50

const permalinkBase = "https://www.reddit.com"

// ErrSubredditNotFound is returned when the named subreddit cannot be
// verified to exist.
var ErrSubredditNotFound = errors.New("subreddit not found")

// Valid sort modes. An unrecognized mode falls back to "hot".
const (
	SortHot    = "hot"
	SortNew    = "new"
	SortTop    = "top"
	SortRising = "rising"
)

// subredditService is the slice of reddit.SubredditService the fetcher
// uses, extracted so tests can substitute a fake.
type subredditService interface {
	Get(ctx context.Context, subreddit string) (*reddit.Subreddit, *reddit.Response, error)
	HotPosts(ctx context.Context, subreddit string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error)
	NewPosts(ctx context.Context, subreddit string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error)
	RisingPosts(ctx context.Context, subreddit string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error)
	TopPosts(ctx context.Context, subreddit string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error)
}

// Fetcher retrieves ranked submissions from subreddits.
type Fetcher struct {
	subreddits subredditService
}

// NewFetcher creates a Fetcher backed by the Reddit API. With a username
// and password it authenticates via OAuth; otherwise it uses the
// read-only client.
func NewFetcher(cfg *config.Config) (*Fetcher, error) {
	opts := []reddit.Opt{reddit.WithUserAgent(cfg.RedditUserAgent)}

	var client *reddit.Client
	var err error
	if cfg.RedditUsername != "" && cfg.RedditPassword != "" {
		client, err = reddit.NewClient(reddit.Credentials{
			ID:       cfg.RedditClientID,
			Secret:   cfg.RedditClientSecret,
			Username: cfg.RedditUsername,
			Password: cfg.RedditPassword,
		}, opts...)
	} else {
		client, err = reddit.NewReadonlyClient(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create reddit client: %w", err)
	}

	return &Fetcher{subreddits: client.Subreddit}, nil
}

// Fetch returns up to min(limit, MaxLimit) posts from the named subreddit
// in the order the platform supplies them. timeFilter only affects the
// "top" sort; for the other sorts it is accepted and ignored. An
// unrecognized sort falls back to "hot".
func (f *Fetcher) Fetch(ctx context.Context, subreddit, sort, timeFilter string, limit int) ([]models.Post, error) {
	if limit > MaxLimit {
		limit = MaxLimit
	}

	// Verify the subreddit exists before listing; a bare listing call on
	// a bad name surfaces as an opaque transport error otherwise.
	sub, _, err := f.subreddits.Get(ctx, subreddit)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: r/%s", ErrSubredditNotFound, subreddit)
		}
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: r/%s", ErrSubredditNotFound, subreddit)
	}

	listOpts := &reddit.ListOptions{Limit: limit}

	var posts []*reddit.Post
	switch sort {
	case SortNew:
		posts, _, err = f.subreddits.NewPosts(ctx, subreddit, listOpts)
	case SortRising:
		posts, _, err = f.subreddits.RisingPosts(ctx, subreddit, listOpts)
	case SortTop:
		posts, _, err = f.subreddits.TopPosts(ctx, subreddit, &reddit.ListPostOptions{
			ListOptions: *listOpts,
			Time:        timeFilter,
		})
	case SortHot:
		posts, _, err = f.subreddits.HotPosts(ctx, subreddit, listOpts)
	default:
		log.Debug().Str("sort", sort).Msg("Unrecognized sort mode, falling back to hot")
		posts, _, err = f.subreddits.HotPosts(ctx, subreddit, listOpts)
	}
	if err != nil {
		return nil, err
	}

	results := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		results = append(results, mapPost(p, subreddit))
	}

	log.Debug().
		Str("subreddit", subreddit).
		Str("sort", sort).
		Int("count", len(results)).
		Msg("Fetched posts")

	return results, nil
}

// mapPost flattens a reddit submission into the wire model.
func mapPost(p *reddit.Post, subreddit string) models.Post {
	author := p.Author
	if author == "" {
		author = models.DeletedAuthor
	}

	permalink := p.Permalink
	if strings.HasPrefix(permalink, "/") {
		permalink = permalinkBase + permalink
	}

	var createdUTC float64
	if p.Created != nil {
		createdUTC = float64(p.Created.Unix())
	}

	selfText := truncate(p.Body, models.SelfTextPreviewLen)

	return models.Post{
		ID:          p.ID,
		Title:       p.Title,
		Score:       p.Score,
		URL:         p.URL,
		Permalink:   permalink,
		CreatedUTC:  createdUTC,
		Author:      author,
		Subreddit:   subreddit,
		NumComments: p.NumberOfComments,
		UpvoteRatio: float64(p.UpvoteRatio),
		SelfText:    selfText,
		Over18:      p.NSFW,
	}
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// isNotFound reports whether err is a Reddit API response indicating the
// subreddit does not exist or is not visible (404, or 403 for private
// communities).
func isNotFound(err error) bool {
	var errResp *reddit.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code := errResp.Response.StatusCode
		return code == http.StatusNotFound || code == http.StatusForbidden
	}
	return false
}
