package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"redscribe/scraper/internal/fetch"
	"redscribe/scraper/internal/models"
	"redscribe/scraper/internal/rewrite"
	"redscribe/scraper/internal/server/storage"
)

// Service metadata reported by the health endpoint.
const (
	ServiceName    = "reddit-scraper-api"
	ServiceVersion = "1.0.0"
)

// Request defaults applied when the body omits a field.
const (
	defaultSubredditLimit = 10
	defaultSort           = fetch.SortHot
	defaultTimeFilter     = "week"
)

// Fetcher is the ranked-listing capability used by the scrape endpoints.
type Fetcher interface {
	Fetch(ctx context.Context, subreddit, sort, timeFilter string, limit int) ([]models.Post, error)
}

// Rewriter is the title-transform capability used by the scrape and
// enhance endpoints.
type Rewriter interface {
	RewriteBatch(ctx context.Context, titles []string, p *models.Personality) []rewrite.Result
}

// Handler holds dependencies for the API handlers.
type Handler struct {
	fetcher Fetcher
	engine  Rewriter
	store   storage.PersonalityStore
}

// NewHandler creates a new handler instance.
func NewHandler(fetcher Fetcher, engine Rewriter, store storage.PersonalityStore) *Handler {
	return &Handler{
		fetcher: fetcher,
		engine:  engine,
		store:   store,
	}
}

// ScrapeRequest is the body of the scrape endpoints.
type ScrapeRequest struct {
	Subreddit       string `json:"subreddit"`
	Limit           int    `json:"limit"`
	Sort            string `json:"sort"`
	TimeFilter      string `json:"time_filter"`
	TelegramID      int64  `json:"telegram_id"`
	PersonalityName string `json:"personality_name"`
	UseAI           *bool  `json:"use_ai"`
}

// ScrapeResponse is the envelope every scrape-style endpoint emits, for
// both outcomes; Status distinguishes them.
type ScrapeResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Results any    `json:"results"`
}

func (r *ScrapeRequest) applyDefaults() {
	if r.Limit == 0 {
		r.Limit = defaultSubredditLimit
	}
	if r.Sort == "" {
		r.Sort = defaultSort
	}
	if r.TimeFilter == "" {
		r.TimeFilter = defaultTimeFilter
	}
	if r.PersonalityName == "" {
		r.PersonalityName = models.DefaultPersonalityName
	}
}

// Home describes the service. No auth.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "Reddit Scraper API",
		"endpoints": map[string]string{
			"health":         "/api/health",
			"scrape":         "/api/scrape",
			"scrape_simple":  "/api/scrape-simple",
			"enhance_titles": "/api/enhance-titles",
			"personalities":  "/api/personalities",
		},
	})
}

// Health reports service liveness. No auth.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}

// Scrape fetches posts, resolves the acting user and personality, and
// rewrites each title. Per-item rewrite failures never fail the request:
// a scrape of N posts always returns N results.
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	taskID := uuid.NewString()

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failScrape(w, r, http.StatusBadRequest, taskID, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req.applyDefaults()
	if req.Subreddit == "" {
		failScrape(w, r, http.StatusBadRequest, taskID, "subreddit is required")
		return
	}

	ctx := r.Context()

	user, err := h.store.GetOrCreateUser(ctx, req.TelegramID, "", "")
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", req.TelegramID).Msg("Failed to resolve user")
		failScrape(w, r, http.StatusInternalServerError, taskID, "failed to resolve user")
		return
	}

	personality, err := h.store.Resolve(ctx, user.UserID, req.PersonalityName)
	if err != nil {
		if errors.Is(err, storage.ErrPersonalityNotFound) {
			failScrape(w, r, http.StatusNotFound, taskID,
				fmt.Sprintf("personality %q not found", req.PersonalityName))
			return
		}
		log.Error().Err(err).Msg("Failed to resolve personality")
		failScrape(w, r, http.StatusInternalServerError, taskID, "failed to resolve personality")
		return
	}

	posts, err := h.fetcher.Fetch(ctx, req.Subreddit, req.Sort, req.TimeFilter, req.Limit)
	if err != nil {
		if errors.Is(err, fetch.ErrSubredditNotFound) {
			failScrape(w, r, http.StatusNotFound, taskID,
				fmt.Sprintf("subreddit r/%s not found", req.Subreddit))
			return
		}
		log.Error().Err(err).Str("subreddit", req.Subreddit).Msg("Fetch failed")
		failScrape(w, r, http.StatusBadGateway, taskID, err.Error())
		return
	}

	useAI := req.UseAI == nil || *req.UseAI

	var results any
	if useAI {
		titles := make([]string, len(posts))
		for i, p := range posts {
			titles[i] = p.Title
		}
		rewritten := h.engine.RewriteBatch(ctx, titles, personality)

		enhanced := make([]models.EnhancedPost, len(posts))
		for i, p := range posts {
			enhanced[i] = models.EnhancedPost{
				Post:            p,
				OriginalTitle:   rewritten[i].Original,
				AITitle:         rewritten[i].Rewritten,
				PersonalityUsed: rewritten[i].Personality,
			}
			if rewritten[i].Err != nil {
				enhanced[i].AIError = rewritten[i].Err.Error()
			}
		}
		results = enhanced
	} else {
		results = posts
	}

	log.Info().
		Str("task_id", taskID).
		Str("subreddit", req.Subreddit).
		Int("count", len(posts)).
		Bool("use_ai", useAI).
		Msg("Scrape completed")

	writeJSON(w, r, http.StatusOK, ScrapeResponse{
		TaskID:  taskID,
		Status:  "completed",
		Message: fmt.Sprintf("Successfully scraped %d posts from r/%s", len(posts), req.Subreddit),
		Results: results,
	})
}

// ScrapeSimple fetches posts without user resolution or AI rewriting.
// The bot front end uses this endpoint.
func (h *Handler) ScrapeSimple(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	taskID := uuid.NewString()

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failScrape(w, r, http.StatusBadRequest, taskID, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req.applyDefaults()
	if req.Subreddit == "" {
		failScrape(w, r, http.StatusBadRequest, taskID, "subreddit is required")
		return
	}

	posts, err := h.fetcher.Fetch(r.Context(), req.Subreddit, req.Sort, req.TimeFilter, req.Limit)
	if err != nil {
		if errors.Is(err, fetch.ErrSubredditNotFound) {
			failScrape(w, r, http.StatusNotFound, taskID,
				fmt.Sprintf("subreddit r/%s not found", req.Subreddit))
			return
		}
		log.Error().Err(err).Str("subreddit", req.Subreddit).Msg("Fetch failed")
		failScrape(w, r, http.StatusBadGateway, taskID, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, ScrapeResponse{
		TaskID:  taskID,
		Status:  "completed",
		Message: fmt.Sprintf("Successfully scraped %d posts from r/%s", len(posts), req.Subreddit),
		Results: posts,
	})
}

// EnhanceTitle is one input item for the enhance-titles endpoint.
type EnhanceTitle struct {
	Title string `json:"title"`
	Score int    `json:"score"`
}

// EnhanceRequest is the body of the enhance-titles endpoint.
type EnhanceRequest struct {
	Titles []EnhanceTitle `json:"titles"`
	Prompt string         `json:"prompt"`
}

// EnhancedTitle is one output item of the enhance-titles endpoint.
type EnhancedTitle struct {
	Title         string `json:"title"`
	Score         int    `json:"score"`
	OriginalTitle string `json:"original_title"`
	AITitle       string `json:"ai_title"`
	AIError       string `json:"ai_error,omitempty"`
}

// EnhanceTitles rewrites a caller-supplied list of titles with an ad hoc
// prompt, independent of any fetching.
func (h *Handler) EnhanceTitles(w http.ResponseWriter, r *http.Request) {
	taskID := uuid.NewString()

	var req EnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failScrape(w, r, http.StatusBadRequest, taskID, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Titles) == 0 {
		failScrape(w, r, http.StatusBadRequest, taskID, "titles is required")
		return
	}
	if req.Prompt == "" {
		failScrape(w, r, http.StatusBadRequest, taskID, "prompt is required")
		return
	}

	// The ad hoc prompt acts as a one-shot personality with default
	// sampling parameters.
	personality := models.NewPersonality(0, "custom")
	personality.PromptTemplate = req.Prompt

	titles := make([]string, len(req.Titles))
	for i, t := range req.Titles {
		titles[i] = t.Title
	}
	rewritten := h.engine.RewriteBatch(r.Context(), titles, personality)

	results := make([]EnhancedTitle, len(req.Titles))
	for i, t := range req.Titles {
		results[i] = EnhancedTitle{
			Title:         t.Title,
			Score:         t.Score,
			OriginalTitle: rewritten[i].Original,
			AITitle:       rewritten[i].Rewritten,
		}
		if rewritten[i].Err != nil {
			results[i].AIError = rewritten[i].Err.Error()
		}
	}

	writeJSON(w, r, http.StatusOK, ScrapeResponse{
		TaskID:  taskID,
		Status:  "completed",
		Message: fmt.Sprintf("Enhanced %d titles", len(results)),
		Results: results,
	})
}

// ListPersonalities returns all personalities for the telegram user given
// in the query string, creating the user on first sight.
func (h *Handler) ListPersonalities(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	telegramID, err := strconv.ParseInt(r.URL.Query().Get("telegram_id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "telegram_id is required and must be an integer")
		return
	}

	user, err := h.store.GetOrCreateUser(r.Context(), telegramID, "", "")
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("Failed to resolve user")
		writeError(w, r, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	personalities, err := h.store.ListPersonalities(r.Context(), user.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list personalities")
		writeError(w, r, http.StatusInternalServerError, "failed to list personalities")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"telegram_id":   telegramID,
		"personalities": personalities,
	})
}

// PersonalityRequest is the body of the personality create/delete
// endpoints.
type PersonalityRequest struct {
	TelegramID     int64   `json:"telegram_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	PromptTemplate string  `json:"prompt_template"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	IsDefault      bool    `json:"is_default"`
}

// CreatePersonality adds a personality for a user.
func (h *Handler) CreatePersonality(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req PersonalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Name == "" || req.PromptTemplate == "" {
		writeError(w, r, http.StatusBadRequest, "name and prompt_template are required")
		return
	}

	user, err := h.store.GetOrCreateUser(r.Context(), req.TelegramID, "", "")
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", req.TelegramID).Msg("Failed to resolve user")
		writeError(w, r, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	p := models.NewPersonality(user.UserID, req.Name)
	p.Description = req.Description
	p.PromptTemplate = req.PromptTemplate
	p.IsDefault = req.IsDefault
	if req.Temperature > 0 {
		p.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = req.MaxTokens
	}

	if err := h.store.CreatePersonality(r.Context(), p); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			writeError(w, r, http.StatusConflict, fmt.Sprintf("personality %q already exists", req.Name))
			return
		}
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create personality")
		writeError(w, r, http.StatusInternalServerError, "failed to create personality")
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"status":      "created",
		"personality": p,
	})
}

// DeletePersonality removes a personality for a user.
func (h *Handler) DeletePersonality(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req PersonalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.store.GetOrCreateUser(r.Context(), req.TelegramID, "", "")
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", req.TelegramID).Msg("Failed to resolve user")
		writeError(w, r, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	if err := h.store.DeletePersonality(r.Context(), user.UserID, req.Name); err != nil {
		switch {
		case errors.Is(err, storage.ErrPersonalityNotFound):
			writeError(w, r, http.StatusNotFound, fmt.Sprintf("personality %q not found", req.Name))
		case errors.Is(err, storage.ErrLastPersonality):
			writeError(w, r, http.StatusConflict, "cannot delete the last personality")
		default:
			log.Error().Err(err).Str("name", req.Name).Msg("Failed to delete personality")
			writeError(w, r, http.StatusInternalServerError, "failed to delete personality")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "deleted",
		"name":   req.Name,
	})
}

// failScrape emits the failed variant of the scrape envelope.
func failScrape(w http.ResponseWriter, r *http.Request, status int, taskID, message string) {
	writeJSON(w, r, status, ScrapeResponse{
		TaskID:  taskID,
		Status:  "failed",
		Message: message,
		Results: nil,
	})
}

// writeError emits a plain error payload for the personality-management
// endpoints.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error writing JSON response body to client")
	}
}
