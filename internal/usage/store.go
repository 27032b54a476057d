package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements EntryWriter, SpendLedger and BudgetSource over PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_logs (
			id, user_id, gateway_key_id, provider_used, model_used,
			status_code, latency_ms, prompt_tokens, completion_tokens,
			total_cost, is_cached, is_failover
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.UserID, e.GatewayKeyID, e.ProviderUsed, e.ModelUsed,
		e.StatusCode, e.LatencyMs, e.PromptTokens, e.CompletionTokens,
		e.TotalCost, e.IsCached, e.IsFailover)
	if err != nil {
		return fmt.Errorf("insert api_logs: %w", err)
	}
	return nil
}

func (s *PGStore) SumCost(ctx context.Context, userID string) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_cost), 0) FROM api_logs WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum api_logs: %w", err)
	}
	return total, nil
}

// UserBudget returns zero for an unknown caller, matching the guard's
// "no budget row means no budget" behavior.
func (s *PGStore) UserBudget(ctx context.Context, userID string) (float64, error) {
	var budget float64
	err := s.db.QueryRow(ctx, `
		SELECT budget_usd FROM users WHERE id = $1
	`, userID).Scan(&budget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query users: %w", err)
	}
	return budget, nil
}

// List returns a caller's log rows, newest first.
func (s *PGStore) List(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, gateway_key_id, provider_used, model_used,
		       status_code, latency_ms, prompt_tokens, completion_tokens,
		       total_cost, is_cached, is_failover, created_at
		FROM api_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query api_logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.GatewayKeyID, &e.ProviderUsed, &e.ModelUsed,
			&e.StatusCode, &e.LatencyMs, &e.PromptTokens, &e.CompletionTokens,
			&e.TotalCost, &e.IsCached, &e.IsFailover, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api_logs row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of log rows for a caller.
func (s *PGStore) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM api_logs WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count api_logs: %w", err)
	}
	return count, nil
}
