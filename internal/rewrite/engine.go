package rewrite

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"redscribe/scraper/internal/models"
)

// Placeholder is the substitution point in prompt templates. A template
// without it is sent to the model literally.
const Placeholder = "{original_title}"

const fallbackMarker = " ✨"

const defaultWorkers = 4

// FallbackPolicy selects what a failed rewrite substitutes for the model
// response.
type FallbackPolicy int

const (
	// FallbackOriginal substitutes the unmodified original title.
	FallbackOriginal FallbackPolicy = iota
	// FallbackOriginalMarked substitutes the original title with a fixed
	// decorative suffix.
	FallbackOriginalMarked
)

// Result is the outcome of one rewrite. Err is set when the transform
// capability failed and Rewritten carries the fallback value; the batch
// as a whole never fails because of it.
type Result struct {
	Original    string
	Rewritten   string
	Personality string
	Err         error
}

// Engine turns post titles into rewritten titles using a personality's
// prompt template and sampling parameters.
type Engine struct {
	gen     Generator
	policy  FallbackPolicy
	workers int
}

// NewEngine creates an Engine with the given generator and fallback policy.
func NewEngine(gen Generator, policy FallbackPolicy) *Engine {
	return &Engine{gen: gen, policy: policy, workers: defaultWorkers}
}

// SetWorkers overrides the number of concurrent rewrite calls used by
// RewriteBatch. Values below 1 are ignored.
func (e *Engine) SetWorkers(n int) {
	if n >= 1 {
		e.workers = n
	}
}

// Rewrite transforms a single title using the personality's template and
// sampling parameters. Failures of the transform capability are absorbed:
// the Result carries the fallback text and the error marker instead.
func (e *Engine) Rewrite(ctx context.Context, title string, p *models.Personality) Result {
	prompt := BuildPrompt(p.PromptTemplate, title)

	text, err := e.gen.Generate(ctx, prompt, p.Temperature, p.MaxTokens)
	if err != nil {
		log.Warn().
			Err(err).
			Str("personality", p.Name).
			Msg("Rewrite failed, substituting fallback")
		return e.fallback(title, p.Name, err)
	}

	return Result{
		Original:    title,
		Rewritten:   clean(text),
		Personality: p.Name,
	}
}

// RewriteBatch rewrites every title, fanning the independent per-title
// calls out over a bounded pool of workers. The result slice always has
// exactly len(titles) entries, in input order, regardless of how many
// individual calls failed.
func (e *Engine) RewriteBatch(ctx context.Context, titles []string, p *models.Personality) []Result {
	results := make([]Result, len(titles))
	if len(titles) == 0 {
		return results
	}

	workers := e.workers
	if workers > len(titles) {
		workers = len(titles)
	}

	processed := make([]bool, len(titles))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = e.Rewrite(ctx, titles[i], p)
				processed[i] = true
			}
		}()
	}

dispatch:
	for i := range titles {
		select {
		case indexes <- i:
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("Rewrite batch canceled mid-dispatch")
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	// Slots never dispatched (canceled context) still get a fallback
	// result so the batch keeps its one-output-per-input shape.
	for i := range results {
		if !processed[i] {
			results[i] = e.fallback(titles[i], p.Name, ctx.Err())
		}
	}

	return results
}

func (e *Engine) fallback(title, personality string, err error) Result {
	rewritten := title
	if e.policy == FallbackOriginalMarked {
		rewritten = title + fallbackMarker
	}
	return Result{
		Original:    title,
		Rewritten:   rewritten,
		Personality: personality,
		Err:         err,
	}
}

// BuildPrompt substitutes the title into the template's placeholder. A
// template without the placeholder is returned unchanged.
func BuildPrompt(tmpl, title string) string {
	return strings.ReplaceAll(tmpl, Placeholder, title)
}

// clean strips surrounding whitespace and one layer of matching quote
// characters from a model response.
func clean(s string) string {
	s = strings.TrimSpace(s)

	pairs := [][2]string{
		{`"`, `"`},
		{"'", "'"},
		{"“", "”"}, // curly double quotes
		{"‘", "’"}, // curly single quotes
	}
	for _, pair := range pairs {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
