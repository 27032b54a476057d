package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store over PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) GlobalRate(ctx context.Context, model string) (*Rate, error) {
	var rate Rate
	err := s.db.QueryRow(ctx, `
		SELECT input_cost_per_million_tokens, output_cost_per_million_tokens
		FROM model_costs
		WHERE model_name = $1
	`, model).Scan(&rate.InputPerMilTokens, &rate.OutputPerMilTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query model_costs: %w", err)
	}
	return &rate, nil
}

func (s *PGStore) UserRate(ctx context.Context, userID, model string) (*Rate, error) {
	var rate Rate
	err := s.db.QueryRow(ctx, `
		SELECT input_cost_per_million_tokens, output_cost_per_million_tokens
		FROM user_model_costs
		WHERE user_id = $1 AND model_name = $2
	`, userID, model).Scan(&rate.InputPerMilTokens, &rate.OutputPerMilTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user_model_costs: %w", err)
	}
	return &rate, nil
}
