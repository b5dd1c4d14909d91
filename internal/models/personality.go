package models

import "time"

// Default values seeded into every new user's "default" personality.
const (
	DefaultPersonalityName = "default"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 100
)

// SeedPromptTemplate is the prompt template given to the personality
// created alongside a new user. The {original_title} placeholder is
// replaced with the post title at rewrite time.
const SeedPromptTemplate = `Please rewrite the following Reddit post title in a more engaging way while keeping the main points:

{original_title}

Make it more conversational and add some personality. Keep the tone friendly and approachable.`

// Personality represents a row in the 'personalities' table: a named,
// user-owned prompt template plus sampling parameters. At most one
// personality per user carries is_default = true.
type Personality struct {
	PersonalityID  int64     `db:"personality_id" json:"personality_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	PromptTemplate string    `db:"prompt_template" json:"prompt_template"`
	Temperature    float64   `db:"temperature" json:"temperature"`
	MaxTokens      int       `db:"max_tokens" json:"max_tokens"`
	IsDefault      bool      `db:"is_default" json:"is_default"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// NewPersonality creates a Personality with default sampling parameters.
func NewPersonality(userID int64, name string) *Personality {
	return &Personality{
		UserID:      userID,
		Name:        name,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		CreatedAt:   time.Now(),
	}
}
