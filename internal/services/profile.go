package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/confabhq/confab/internal/models"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrSearchTermTooShort = errors.New("search term too short")
	ErrNoMatches          = errors.New("no matching usernames")
)

const (
	usernameMinLength = 3
	usernameMaxLength = 8
	searchMinLength   = 3
	searchResultLimit = 10
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// ValidateUsername enforces the username format: 3-8 characters, letters,
// digits, underscore and dot only.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		return ErrInvalidUsername
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ProfileService manages the public profile attached to each auth user.
// Usernames are stored lowercase so lookups and uniqueness are case
// insensitive.
type ProfileService struct {
	db DB
}

func NewProfileService(db DB) *ProfileService {
	return &ProfileService{db: db}
}

// CheckUsernameAvailable reports ErrUsernameTaken when the username is in
// use. Callers still have to handle the conflict on insert; the check only
// exists to fail registration before credentials are created upstream.
func (s *ProfileService) CheckUsernameAvailable(ctx context.Context, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE username = LOWER($1))`,
		username,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking username availability: %w", err)
	}
	if exists {
		return ErrUsernameTaken
	}
	return nil
}

func (s *ProfileService) Create(ctx context.Context, userID uuid.UUID, username string) (*models.Profile, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	profile := &models.Profile{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO profiles (id, username)
		 VALUES ($1, LOWER($2))
		 RETURNING id, username, created_at`,
		userID, username,
	).Scan(&profile.ID, &profile.Username, &profile.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return profile, nil
}

func (s *ProfileService) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{}
	err := s.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&profile.ID, &profile.Username, &profile.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return profile, nil
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	profile := &models.Profile{}
	err := s.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM profiles WHERE username = LOWER($1)`,
		username,
	).Scan(&profile.ID, &profile.Username, &profile.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by username: %w", err)
	}
	return profile, nil
}

// Search returns up to ten usernames beginning with term, in username
// order. Terms shorter than three characters are rejected; a search with no
// hits is ErrNoMatches.
func (s *ProfileService) Search(ctx context.Context, term string) ([]models.UserSearchResult, error) {
	term = strings.TrimSpace(term)
	if len(term) < searchMinLength {
		return nil, ErrSearchTermTooShort
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, username FROM profiles
		 WHERE username LIKE LOWER($1) || '%'
		 ORDER BY username
		 LIMIT $2`,
		escapeLikeTerm(term), searchResultLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}
	defer rows.Close()

	var results []models.UserSearchResult
	for rows.Next() {
		var result models.UserSearchResult
		if err := rows.Scan(&result.ID, &result.Username); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoMatches
	}
	return results, nil
}

// escapeLikeTerm neutralizes LIKE metacharacters so the search term is
// matched literally. Underscore is a legal username character.
func escapeLikeTerm(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)
	return term
}
