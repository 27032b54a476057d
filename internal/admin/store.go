package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/af-corp/relay-gateway/internal/types"
	"github.com/af-corp/relay-gateway/internal/usage"
)

// Key is one gateway_keys row as exposed to operators. The key ID is
// the credential itself, so listings redact it down to a prefix.
type Key struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RouterID  string    `json:"router_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// GlobalRate is one model_costs row.
type GlobalRate struct {
	ModelName          string  `json:"model_name"`
	InputPerMilTokens  float64 `json:"input_cost_per_million_tokens"`
	OutputPerMilTokens float64 `json:"output_cost_per_million_tokens"`
}

// UserRate is one user_model_costs row.
type UserRate struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"user_id"`
	ModelName          string  `json:"model_name"`
	InputPerMilTokens  float64 `json:"input_cost_per_million_tokens"`
	OutputPerMilTokens float64 `json:"output_cost_per_million_tokens"`
}

// Store is the persistence surface of the management API.
type Store interface {
	ListProviders(ctx context.Context) ([]types.Provider, error)
	CreateProvider(ctx context.Context, p types.Provider) error
	UpdateProvider(ctx context.Context, p types.Provider) error
	DeleteProvider(ctx context.Context, id string) error

	ListRouters(ctx context.Context) ([]types.Router, error)
	CreateRouter(ctx context.Context, rt types.Router) error
	DeleteRouter(ctx context.Context, id string) error
	RulesForRouter(ctx context.Context, routerID string) ([]types.RoutingRule, error)
	ReplaceRules(ctx context.Context, routerID string, rules []types.RoutingRule) error

	ListKeys(ctx context.Context) ([]Key, error)
	CreateKey(ctx context.Context, k Key) error
	DeactivateKey(ctx context.Context, id string) error

	ListGlobalRates(ctx context.Context, search string) ([]GlobalRate, error)
	UpsertGlobalRate(ctx context.Context, rate GlobalRate) error
	ListUserRates(ctx context.Context, userID string) ([]UserRate, error)
	UpsertUserRate(ctx context.Context, rate UserRate) error
	DeleteUserRate(ctx context.Context, id string) error
}

// LogReader reads usage rows and budget ceilings for the reporting
// endpoints.
type LogReader interface {
	List(ctx context.Context, userID string, limit, offset int) ([]usage.Entry, error)
	Count(ctx context.Context, userID string) (int64, error)
	SumCost(ctx context.Context, userID string) (float64, error)
	UserBudget(ctx context.Context, userID string) (float64, error)
}

// MissingModelLister reads the unpriced-model tally.
type MissingModelLister interface {
	List(ctx context.Context) (map[string]int64, error)
}

// PGStore implements Store over PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ListProviders(ctx context.Context) ([]types.Provider, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, provider_type, COALESCE(base_url, ''), COALESCE(base_urls, ''), is_enabled
		FROM providers
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var providers []types.Provider
	for rows.Next() {
		var p types.Provider
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Kind, &p.BaseURL, &p.BaseURLs, &p.Enabled); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *PGStore) CreateProvider(ctx context.Context, p types.Provider) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO providers (id, user_id, name, provider_type, base_url, base_urls, api_key_encrypted, is_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.Name, p.Kind, p.BaseURL, p.BaseURLs, p.APIKeyEncrypted, p.Enabled)
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

// UpdateProvider leaves the stored API key untouched when the update
// carries an empty one.
func (s *PGStore) UpdateProvider(ctx context.Context, p types.Provider) error {
	_, err := s.db.Exec(ctx, `
		UPDATE providers
		SET name = $2, provider_type = $3, base_url = $4, base_urls = $5, is_enabled = $6,
		    api_key_encrypted = CASE WHEN $7 = '' THEN api_key_encrypted ELSE $7 END
		WHERE id = $1`,
		p.ID, p.Name, p.Kind, p.BaseURL, p.BaseURLs, p.Enabled, p.APIKeyEncrypted)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteProvider(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	return nil
}

func (s *PGStore) ListRouters(ctx context.Context) ([]types.Router, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, created_at FROM routers ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query routers: %w", err)
	}
	defer rows.Close()

	var routers []types.Router
	for rows.Next() {
		var rt types.Router
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.Name, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan router: %w", err)
		}
		routers = append(routers, rt)
	}
	return routers, rows.Err()
}

func (s *PGStore) CreateRouter(ctx context.Context, rt types.Router) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO routers (id, user_id, name) VALUES ($1, $2, $3)`,
		rt.ID, rt.UserID, rt.Name)
	if err != nil {
		return fmt.Errorf("insert router: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteRouter(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM routers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete router: %w", err)
	}
	return nil
}

func (s *PGStore) RulesForRouter(ctx context.Context, routerID string) ([]types.RoutingRule, error) {
	rows, err := s.db.Query(ctx, `
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

// ReplaceRules swaps a router's entire rule set atomically.
func (s *PGStore) ReplaceRules(ctx context.Context, routerID string, rules []types.RoutingRule) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rule replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM routing_rules WHERE router_id = $1`, routerID); err != nil {
		return fmt.Errorf("clear routing rules: %w", err)
	}
	for _, r := range rules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO routing_rules (id, router_id, priority, condition, provider_id, allowed_models)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, routerID, r.Priority, r.Tier, r.ProviderID, r.AllowedModels); err != nil {
			return fmt.Errorf("insert routing rule: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ListKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, router_id, COALESCE(name, ''), is_active, created_at
		FROM gateway_keys
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query gateway keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.ID, &k.UserID, &k.RouterID, &k.Name, &k.IsActive, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gateway key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PGStore) CreateKey(ctx context.Context, k Key) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO gateway_keys (id, user_id, router_id, name, is_active)
		VALUES ($1, $2, $3, $4, TRUE)`,
		k.ID, k.UserID, k.RouterID, k.Name)
	if err != nil {
		return fmt.Errorf("insert gateway key: %w", err)
	}
	return nil
}

// DeactivateKey revokes without deleting so log rows keep their key
// attribution.
func (s *PGStore) DeactivateKey(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `UPDATE gateway_keys SET is_active = FALSE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deactivate gateway key: %w", err)
	}
	return nil
}

// ListGlobalRates returns the global pricing table, optionally filtered
// by a case-insensitive model-name substring.
func (s *PGStore) ListGlobalRates(ctx context.Context, search string) ([]GlobalRate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT model_name, input_cost_per_million_tokens, output_cost_per_million_tokens
		FROM model_costs
		WHERE $1 = '' OR model_name ILIKE '%' || $1 || '%'
		ORDER BY model_name ASC`, search)
	if err != nil {
		return nil, fmt.Errorf("query model costs: %w", err)
	}
	defer rows.Close()

	var rates []GlobalRate
	for rows.Next() {
		var r GlobalRate
		if err := rows.Scan(&r.ModelName, &r.InputPerMilTokens, &r.OutputPerMilTokens); err != nil {
			return nil, fmt.Errorf("scan model cost: %w", err)
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

func (s *PGStore) UpsertGlobalRate(ctx context.Context, rate GlobalRate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO model_costs (model_name, input_cost_per_million_tokens, output_cost_per_million_tokens)
		VALUES ($1, $2, $3)
		ON CONFLICT (model_name) DO UPDATE
		SET input_cost_per_million_tokens = EXCLUDED.input_cost_per_million_tokens,
		    output_cost_per_million_tokens = EXCLUDED.output_cost_per_million_tokens`,
		rate.ModelName, rate.InputPerMilTokens, rate.OutputPerMilTokens)
	if err != nil {
		return fmt.Errorf("upsert model cost: %w", err)
	}
	return nil
}

func (s *PGStore) ListUserRates(ctx context.Context, userID string) ([]UserRate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, model_name, input_cost_per_million_tokens, output_cost_per_million_tokens
		FROM user_model_costs
		WHERE user_id = $1
		ORDER BY model_name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user model costs: %w", err)
	}
	defer rows.Close()

	var rates []UserRate
	for rows.Next() {
		var r UserRate
		if err := rows.Scan(&r.ID, &r.UserID, &r.ModelName, &r.InputPerMilTokens, &r.OutputPerMilTokens); err != nil {
			return nil, fmt.Errorf("scan user model cost: %w", err)
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

func (s *PGStore) UpsertUserRate(ctx context.Context, rate UserRate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_model_costs (id, user_id, model_name, input_cost_per_million_tokens, output_cost_per_million_tokens)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, model_name) DO UPDATE
		SET input_cost_per_million_tokens = EXCLUDED.input_cost_per_million_tokens,
		    output_cost_per_million_tokens = EXCLUDED.output_cost_per_million_tokens`,
		rate.ID, rate.UserID, rate.ModelName, rate.InputPerMilTokens, rate.OutputPerMilTokens)
	if err != nil {
		return fmt.Errorf("upsert user model cost: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteUserRate(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_model_costs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user model cost: %w", err)
	}
	return nil
}
