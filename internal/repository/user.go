package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fxgate/fxgate/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
	ErrAPIKeyExists = errors.New("api key already exists")
)

const userColumns = `
	u.id, u.email, u.hashed_password, u.api_key, u.credits, u.plan_id, u.is_active, u.created_at, u.updated_at,
	p.id, p.name, p.rate_limit, p.initial_credits
`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var p model.Plan
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.APIKey, &u.Credits, &u.PlanID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		&p.ID, &p.Name, &p.RateLimit, &p.InitialCredits,
	)
	if err != nil {
		return nil, err
	}
	u.Plan = &p
	return &u, nil
}

// CreateUser inserts a new user. ID and timestamps are filled when empty.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, email, hashed_password, api_key, credits, plan_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.HashedPassword,
		user.APIKey,
		user.Credits,
		user.PlanID,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_api_key_key" {
				return ErrAPIKeyExists
			}
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user with its plan.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		JOIN plans p ON p.id = u.plan_id
		WHERE u.id = $1
	`
	return r.getUser(ctx, "ID", query, id)
}

// GetUserByEmail retrieves a user with its plan, active or not.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		JOIN plans p ON p.id = u.plan_id
		WHERE u.email = $1
	`
	return r.getUser(ctx, "email", query, email)
}

// GetUserByAPIKey resolves an active user and its plan in one round trip.
func (r *Repository) GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		JOIN plans p ON p.id = u.plan_id
		WHERE u.api_key = $1 AND u.is_active
	`
	return r.getUser(ctx, "API key", query, apiKey)
}

func (r *Repository) getUser(ctx context.Context, by, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	return user, nil
}

// SetUserActive toggles the soft-deactivation flag.
func (r *Repository) SetUserActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
