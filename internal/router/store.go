package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/af-corp/relay-gateway/internal/types"
)

// PGRuleStore reads routing rules from Postgres.
type PGRuleStore struct {
	pool *pgxpool.Pool
}

func NewPGRuleStore(pool *pgxpool.Pool) *PGRuleStore {
	return &PGRuleStore{pool: pool}
}

// RulesForRouter returns the router's rules ordered by priority. The
// order returned here is the order the dispatcher tries providers in.
func (s *PGRuleStore) RulesForRouter(ctx context.Context, routerID string) ([]types.RoutingRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, router_id, priority, condition, provider_id, COALESCE(allowed_models, '')
		FROM routing_rules
		WHERE router_id = $1
		ORDER BY priority ASC`, routerID)
	if err != nil {
		return nil, fmt.Errorf("query routing rules: %w", err)
	}
	defer rows.Close()

	var rules []types.RoutingRule
	for rows.Next() {
		var r types.RoutingRule
		if err := rows.Scan(&r.ID, &r.RouterID, &r.Priority, &r.Tier, &r.ProviderID, &r.AllowedModels); err != nil {
			return nil, fmt.Errorf("scan routing rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// PGProviderStore reads providers from Postgres.
type PGProviderStore struct {
	pool *pgxpool.Pool
}

func NewPGProviderStore(pool *pgxpool.Pool) *PGProviderStore {
	return &PGProviderStore{pool: pool}
}

// ProviderByID fetches one provider. A dangling reference returns
// (nil, nil) so the dispatcher can skip the rule.
func (s *PGProviderStore) ProviderByID(ctx context.Context, id string) (*types.Provider, error) {
	var p types.Provider
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, provider_type, COALESCE(base_url, ''), COALESCE(base_urls, ''),
		       COALESCE(api_key_encrypted, ''), is_enabled
		FROM providers
		WHERE id = $1`, id).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Kind, &p.BaseURL, &p.BaseURLs, &p.APIKeyEncrypted, &p.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query provider: %w", err)
	}
	return &p, nil
}
