package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vartanbeno/go-reddit/v2/reddit"
)

// fakeSubreddits records the listing call it served so tests can assert
// on the sort mode and options the fetcher chose.
type fakeSubreddits struct {
	posts []*reddit.Post

	getErr error
	sub    *reddit.Subreddit

	lastMethod   string
	lastListOpts *reddit.ListOptions
	lastPostOpts *reddit.ListPostOptions
}

func (f *fakeSubreddits) Get(_ context.Context, subreddit string) (*reddit.Subreddit, *reddit.Response, error) {
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	if f.sub == nil {
		return &reddit.Subreddit{Name: subreddit}, nil, nil
	}
	return f.sub, nil, nil
}

func (f *fakeSubreddits) HotPosts(_ context.Context, _ string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error) {
	f.lastMethod = "hot"
	f.lastListOpts = opts
	return f.limited(opts.Limit), nil, nil
}

func (f *fakeSubreddits) NewPosts(_ context.Context, _ string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error) {
	f.lastMethod = "new"
	f.lastListOpts = opts
	return f.limited(opts.Limit), nil, nil
}

func (f *fakeSubreddits) RisingPosts(_ context.Context, _ string, opts *reddit.ListOptions) ([]*reddit.Post, *reddit.Response, error) {
	f.lastMethod = "rising"
	f.lastListOpts = opts
	return f.limited(opts.Limit), nil, nil
}

func (f *fakeSubreddits) TopPosts(_ context.Context, _ string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error) {
	f.lastMethod = "top"
	f.lastPostOpts = opts
	return f.limited(opts.Limit), nil, nil
}

func (f *fakeSubreddits) limited(limit int) []*reddit.Post {
	if limit > 0 && limit < len(f.posts) {
		return f.posts[:limit]
	}
	return f.posts
}

func makePosts(n int) []*reddit.Post {
	posts := make([]*reddit.Post, n)
	for i := range posts {
		posts[i] = &reddit.Post{
			ID:      string(rune('a' + i)),
			Title:   "title",
			Author:  "someone",
			Created: &reddit.Timestamp{Time: time.Unix(1700000000, 0)},
		}
	}
	return posts
}

func TestFetchClampsLimit(t *testing.T) {
	fake := &fakeSubreddits{posts: makePosts(3)}
	f := &Fetcher{subreddits: fake}

	posts, err := f.Fetch(context.Background(), "golang", SortHot, "", 500)
	require.NoError(t, err)

	assert.Equal(t, MaxLimit, fake.lastListOpts.Limit)
	assert.Len(t, posts, 3, "shorter underlying fetch passes through")
}

func TestFetchUnknownSortFallsBackToHot(t *testing.T) {
	fake := &fakeSubreddits{posts: makePosts(1)}
	f := &Fetcher{subreddits: fake}

	_, err := f.Fetch(context.Background(), "golang", "controversial", "", 10)
	require.NoError(t, err)
	assert.Equal(t, "hot", fake.lastMethod)
}

func TestFetchTimeFilterOnlyAffectsTop(t *testing.T) {
	fake := &fakeSubreddits{posts: makePosts(1)}
	f := &Fetcher{subreddits: fake}

	_, err := f.Fetch(context.Background(), "golang", SortTop, "month", 10)
	require.NoError(t, err)
	require.NotNil(t, fake.lastPostOpts)
	assert.Equal(t, "month", fake.lastPostOpts.Time)

	_, err = f.Fetch(context.Background(), "golang", SortNew, "month", 10)
	require.NoError(t, err)
	assert.Equal(t, "new", fake.lastMethod)
}

func TestFetchShortCollection(t *testing.T) {
	// A collection with only 3 posts answers a limit-5 top request with
	// exactly those 3, tagged and in native order.
	fake := &fakeSubreddits{posts: makePosts(3)}
	f := &Fetcher{subreddits: fake}

	posts, err := f.Fetch(context.Background(), "golang", SortTop, "month", 5)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	for i, p := range posts {
		assert.Equal(t, "golang", p.Subreddit)
		assert.Equal(t, string(rune('a'+i)), p.ID)
	}
}

func TestFetchSubredditNotFound(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusNotFound,
		Request:    httptest.NewRequest(http.MethodGet, "http://example.com", nil),
	}
	fake := &fakeSubreddits{getErr: &reddit.ErrorResponse{Response: resp}}
	f := &Fetcher{subreddits: fake}

	_, err := f.Fetch(context.Background(), "nosuchsub", SortHot, "", 10)
	assert.ErrorIs(t, err, ErrSubredditNotFound)
}

func TestMapPost(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}

	p := &reddit.Post{
		ID:               "abc",
		Title:            "A title",
		Score:            -4,
		URL:              "https://example.com/article",
		Permalink:        "/r/golang/comments/abc/a_title/",
		Created:          &reddit.Timestamp{Time: time.Unix(1700000000, 0)},
		Author:           "",
		NumberOfComments: 12,
		UpvoteRatio:      0.93,
		Body:             string(long),
		NSFW:             true,
	}

	got := mapPost(p, "golang")

	assert.Equal(t, "https://www.reddit.com/r/golang/comments/abc/a_title/", got.Permalink)
	assert.Equal(t, "[deleted]", got.Author, "removed authors get the sentinel")
	assert.Equal(t, float64(1700000000), got.CreatedUTC)
	assert.Equal(t, -4, got.Score)
	assert.Len(t, got.SelfText, 200, "self text truncated to preview length")
	assert.True(t, got.Over18)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))

	// A multibyte rune straddling the cut is dropped whole, never split.
	twoByte := strings.Repeat("é", 150) // 300 bytes
	got := truncate(twoByte, 199)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 198, len(got))

	threeByte := strings.Repeat("日", 70) // 210 bytes
	got = truncate(threeByte, 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 198, len(got))
}
