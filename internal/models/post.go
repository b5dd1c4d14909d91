package models

// SelfTextPreviewLen is the maximum number of bytes of a post's selftext
// carried in responses.
const SelfTextPreviewLen = 200

// DeletedAuthor is the sentinel used when the platform has removed the
// author of a post.
const DeletedAuthor = "[deleted]"

// Post is one fetched submission from the platform. Posts live only for
// the duration of a request and are never persisted.
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Score       int     `json:"score"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	SelfText    string  `json:"selftext"`
	Over18      bool    `json:"over_18"`
}

// EnhancedPost is a Post whose title has been run through the rewrite
// engine. AIError is set when the rewrite failed and AITitle carries the
// fallback value instead of a model response.
type EnhancedPost struct {
	Post
	OriginalTitle   string `json:"original_title"`
	AITitle         string `json:"ai_title"`
	PersonalityUsed string `json:"personality_used"`
	AIError         string `json:"ai_error,omitempty"`
}
