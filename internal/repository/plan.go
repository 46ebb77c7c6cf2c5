package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fxgate/fxgate/internal/model"
)

// ErrPlanNotFound is returned when a plan ID does not resolve.
var ErrPlanNotFound = errors.New("plan not found")

// GetPlanByID retrieves a plan.
func (r *Repository) GetPlanByID(ctx context.Context, id int64) (*model.Plan, error) {
	query := `
		SELECT id, name, rate_limit, initial_credits
		FROM plans
		WHERE id = $1
	`

	var p model.Plan
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.RateLimit, &p.InitialCredits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}

// ListPlans returns all plans ordered by ID.
func (r *Repository) ListPlans(ctx context.Context) ([]model.Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, rate_limit, initial_credits FROM plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.RateLimit, &p.InitialCredits); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

// SeedPlans inserts plans only when the table is empty. Returns the number inserted.
func (r *Repository) SeedPlans(ctx context.Context, plans []model.Plan) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize concurrent seeders on the table lock.
	if _, err := tx.Exec(ctx, `LOCK TABLE plans IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("failed to lock plans: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM plans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range plans {
		batch.Queue(`INSERT INTO plans (name, rate_limit, initial_credits) VALUES ($1, $2, $3)`,
			p.Name, p.RateLimit, p.InitialCredits)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to insert plans: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit plans: %w", err)
	}
	return len(plans), nil
}
