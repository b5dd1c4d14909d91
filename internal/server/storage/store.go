package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"redscribe/scraper/internal/database"
	"redscribe/scraper/internal/models"
)

// Store errors surfaced to handlers.
var (
	// ErrPersonalityNotFound is returned when a named personality does not
	// exist for the user, or when "default" is requested and no row
	// carries the default flag.
	ErrPersonalityNotFound = errors.New("personality not found")
	// ErrDuplicateName is returned when creating a personality whose name
	// the user already owns.
	ErrDuplicateName = errors.New("personality name already exists")
	// ErrLastPersonality is returned when deleting a user's only
	// remaining personality.
	ErrLastPersonality = errors.New("cannot delete the last personality")
)

// PersonalityStore defines operations for users and their personalities.
type PersonalityStore interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error)
	ListPersonalities(ctx context.Context, userID int64) ([]models.Personality, error)
	CreatePersonality(ctx context.Context, p *models.Personality) error
	Resolve(ctx context.Context, userID int64, name string) (*models.Personality, error)
	DeletePersonality(ctx context.Context, userID int64, name string) error
}

// sqlxStore implements PersonalityStore using sqlx.
type sqlxStore struct {
	db *database.DB
}

// NewStore creates a new store instance.
func NewStore(db *database.DB) PersonalityStore {
	return &sqlxStore{db: db}
}

// GetOrCreateUser returns the user for a telegram id, creating the user
// row together with its seeded "default" personality when absent. The
// insert runs in one transaction so no user ever exists without a
// personality.
func (s *sqlxStore) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE telegram_id = ?", telegramID)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (telegram_id, username, first_name) VALUES (?, ?, ?)",
		telegramID, nullable(username), nullable(firstName),
	)
	if err != nil {
		// A concurrent request may have created the row between the
		// lookup and the insert; fall back to reading it.
		if isUniqueViolation(err) {
			var existing models.User
			if getErr := s.db.GetContext(ctx, &existing, "SELECT * FROM users WHERE telegram_id = ?", telegramID); getErr == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get new user id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO personalities (user_id, name, description, prompt_template, temperature, max_tokens, is_default)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		userID, models.DefaultPersonalityName, "Default friendly personality",
		models.SeedPromptTemplate, models.DefaultTemperature, models.DefaultMaxTokens,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to seed default personality: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	if err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE user_id = ?", userID); err != nil {
		return nil, fmt.Errorf("failed to reload created user: %w", err)
	}
	return &user, nil
}

// ListPersonalities returns all personalities owned by a user.
func (s *sqlxStore) ListPersonalities(ctx context.Context, userID int64) ([]models.Personality, error) {
	var personalities []models.Personality
	err := s.db.SelectContext(ctx, &personalities,
		"SELECT * FROM personalities WHERE user_id = ? ORDER BY personality_id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personalities: %w", err)
	}
	return personalities, nil
}

// CreatePersonality inserts a new personality. When the new row is
// flagged default, every other personality of the user is demoted in the
// same transaction, so at most one default holds at all observable times.
func (s *sqlxStore) CreatePersonality(ctx context.Context, p *models.Personality) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if p.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE personalities SET is_default = 0 WHERE user_id = ?", p.UserID); err != nil {
			return fmt.Errorf("failed to demote existing default: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO personalities (user_id, name, description, prompt_template, temperature, max_tokens, is_default)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.Description, p.PromptTemplate, p.Temperature, p.MaxTokens, p.IsDefault,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
		}
		return fmt.Errorf("failed to create personality: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit personality creation: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		p.PersonalityID = id
	}
	return nil
}

// Resolve returns the personality a request should use. The name
// "default" (or an empty name) resolves to the row carrying the default
// flag; any other name must match exactly, case-sensitively.
func (s *sqlxStore) Resolve(ctx context.Context, userID int64, name string) (*models.Personality, error) {
	var (
		p   models.Personality
		err error
	)
	if name == "" || name == models.DefaultPersonalityName {
		err = s.db.GetContext(ctx, &p,
			"SELECT * FROM personalities WHERE user_id = ? AND is_default = 1", userID)
	} else {
		err = s.db.GetContext(ctx, &p,
			"SELECT * FROM personalities WHERE user_id = ? AND name = ?", userID, name)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrPersonalityNotFound, name)
		}
		return nil, fmt.Errorf("failed to resolve personality: %w", err)
	}
	return &p, nil
}

// DeletePersonality removes a personality by name. Deleting a user's only
// remaining personality is rejected, even if it is not the current
// default.
func (s *sqlxStore) DeletePersonality(ctx context.Context, userID int64, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var personalityID int64
	err = tx.GetContext(ctx, &personalityID,
		"SELECT personality_id FROM personalities WHERE user_id = ? AND name = ?", userID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %q", ErrPersonalityNotFound, name)
		}
		return fmt.Errorf("failed to look up personality: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM personalities WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to count personalities: %w", err)
	}
	if count <= 1 {
		return ErrLastPersonality
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM personalities WHERE personality_id = ?", personalityID); err != nil {
		return fmt.Errorf("failed to delete personality: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit personality deletion: %w", err)
	}
	return nil
}

// nullable maps an empty string to a SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
