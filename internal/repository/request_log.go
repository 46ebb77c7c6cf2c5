package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fxgate/fxgate/internal/model"
)

// Request log listing bounds.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRequestLog(ctx context.Context, db execer, log *model.RequestLog) error {
	if log.ID == "" {
		log.ID = newID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx, `
		INSERT INTO request_logs (id, user_id, endpoint, request_data, response_data, status_code, credits_deducted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		log.ID,
		log.UserID,
		log.Endpoint,
		log.RequestData,
		log.ResponseData,
		log.StatusCode,
		log.CreditsDeducted,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}

// AppendRequestLog records an outcome that debited nothing.
func (r *Repository) AppendRequestLog(ctx context.Context, log *model.RequestLog) error {
	log.CreditsDeducted = 0
	return insertRequestLog(ctx, r.pool, log)
}

// ListRequestLogs returns a user's most recent logs, newest first.
func (r *Repository) ListRequestLogs(ctx context.Context, userID string, limit int) ([]model.RequestLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, endpoint, request_data, response_data, status_code, credits_deducted, created_at
		FROM request_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RequestLog, error) {
		var l model.RequestLog
		err := row.Scan(&l.ID, &l.UserID, &l.Endpoint, &l.RequestData, &l.ResponseData, &l.StatusCode, &l.CreditsDeducted, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan request logs: %w", err)
	}
	return logs, nil
}
