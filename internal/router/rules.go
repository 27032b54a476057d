// Package router evaluates a router's ordered rule set and dispatches a
// request across its providers, falling back tier by tier until one
// succeeds.
package router

import (
	"context"
	"errors"

	"github.com/af-corp/relay-gateway/internal/types"
)

// ErrNoRulesConfigured means the authenticated router has no routing
// rules at all. The caller reports this as a client configuration error,
// not an upstream failure.
var ErrNoRulesConfigured = errors.New("no routing rules configured for router")

// RuleStore fetches the full ordered rule set of one router.
type RuleStore interface {
	RulesForRouter(ctx context.Context, routerID string) ([]types.RoutingRule, error)
}

// RuleSet is a router's rules split by tier, each slice preserving the
// store's priority order.
type RuleSet struct {
	Primary  []types.RoutingRule
	Fallback []types.RoutingRule
}

// Evaluator loads and partitions routing rules.
type Evaluator struct {
	store RuleStore
}

func NewEvaluator(store RuleStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate fetches the router's rules and partitions them into primary
// and fallback tiers. Rules with an unknown tier value are ignored. An
// empty rule set is an error.
func (e *Evaluator) Evaluate(ctx context.Context, routerID string) (*RuleSet, error) {
	rules, err := e.store.RulesForRouter(ctx, routerID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrNoRulesConfigured
	}

	set := &RuleSet{}
	for _, r := range rules {
		switch r.Tier {
		case types.TierPrimary:
			set.Primary = append(set.Primary, r)
		case types.TierFallback:
			set.Fallback = append(set.Fallback, r)
		}
	}
	return set, nil
}
