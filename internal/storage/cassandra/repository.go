package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/stawikopa-del/fitfly-sub001/internal/models"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

// Repository implements storage.CompletionRepository using Cassandra
type Repository struct {
	client  *Client
	logger  *logger.Logger
	timeout time.Duration
}

// NewRepository creates a new Cassandra-based completion repository
func NewRepository(client *Client, log *logger.Logger, timeout time.Duration) *Repository {
	return &Repository{
		client:  client,
		logger:  log,
		timeout: timeout,
	}
}

// RecordCompletion claims the session ID, then appends to the user's history.
func (r *Repository) RecordCompletion(ctx context.Context, completion *models.Completion) error {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()
	if err := queryCtx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	claim := fmt.Sprintf(`
		INSERT INTO %s.completions_by_session (session_id, user_id, completed_at)
		VALUES (?, ?, ?)
		IF NOT EXISTS`, r.client.Keyspace())

	applied, err := r.client.Session().Query(claim,
		completion.SessionID,
		completion.UserID,
		completion.CompletedAt,
	).WithContext(queryCtx).ScanCAS(nil)
	if err != nil {
		r.logger.Error("Failed to claim completion in Cassandra",
			logger.F("session_id", completion.SessionID),
			logger.Err(err))
		return fmt.Errorf("failed to record completion: %w", err)
	}
	if !applied {
		return storage.ErrCompletionExists
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s.completions_by_user
			(user_id, completed_at, session_id, kind, preset, completed_steps, total_steps, points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.client.Keyspace())

	err = r.client.Session().Query(insert,
		completion.UserID,
		completion.CompletedAt,
		completion.SessionID,
		completion.Kind,
		completion.Preset,
		completion.CompletedSteps,
		completion.TotalSteps,
		completion.Points,
	).WithContext(queryCtx).Exec()
	if err != nil {
		r.logger.Error("Failed to write completion history",
			logger.F("session_id", completion.SessionID),
			logger.Err(err))
		return fmt.Errorf("failed to record completion: %w", err)
	}

	r.logger.Debug("Completion recorded", logger.F("session_id", completion.SessionID))
	return nil
}

// ListCompletions reads a user's partition, newest first
func (r *Repository) ListCompletions(ctx context.Context, userID string) ([]*models.Completion, error) {
	queryCtx, cancel := r.queryContext(ctx)
	defer cancel()
	if err := queryCtx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT user_id, completed_at, session_id, kind, preset, completed_steps, total_steps, points
		FROM %s.completions_by_user
		WHERE user_id = ?`, r.client.Keyspace())

	iter := r.client.Session().Query(query, userID).WithContext(queryCtx).Iter()

	completions := make([]*models.Completion, 0)
	var c models.Completion
	for iter.Scan(
		&c.UserID,
		&c.CompletedAt,
		&c.SessionID,
		&c.Kind,
		&c.Preset,
		&c.CompletedSteps,
		&c.TotalSteps,
		&c.Points,
	) {
		row := c
		completions = append(completions, &row)
	}

	if err := iter.Close(); err != nil {
		r.logger.Error("Failed to list completions from Cassandra",
			logger.F("user_id", userID),
			logger.Err(err))
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	return completions, nil
}

// queryContext applies the configured timeout unless ctx already has a deadline
func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
