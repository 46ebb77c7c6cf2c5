package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fxgate/fxgate/internal/model"
)

// ErrInsufficientCredits is returned when a debit would take the balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ChargeCredits debits cost from the user and appends log in one transaction.
// The balance check is the UPDATE's WHERE clause, so concurrent debits for the
// same user cannot overdraw. On success log.CreditsDeducted equals cost and the
// remaining balance is returned.
func (r *Repository) ChargeCredits(ctx context.Context, userID string, cost int, log *model.RequestLog) (int, error) {
	if cost < 0 {
		return 0, fmt.Errorf("invalid credit cost %d", cost)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE users
		SET credits = credits - $2, updated_at = NOW()
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`, userID, cost).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.debitMiss(ctx, tx, userID)
		}
		if checkViolation(err) {
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}

	log.UserID = userID
	log.CreditsDeducted = cost
	if err := insertRequestLog(ctx, tx, log); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit debit: %w", err)
	}
	return remaining, nil
}

// debitMiss tells a missing user apart from an exhausted balance.
func (r *Repository) debitMiss(ctx context.Context, tx pgx.Tx, userID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrInsufficientCredits
}

// GetCredits returns the current balance.
func (r *Repository) GetCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := r.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}
	return credits, nil
}
