package usage

import (
	"context"
	"fmt"
)

// BudgetExceededError reports a caller whose historical spend has reached
// their budget ceiling.
type BudgetExceededError struct {
	Spend  float64
	Budget float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: spent %.6f of %.6f", e.Spend, e.Budget)
}

// BudgetSource exposes a caller's configured budget ceiling.
type BudgetSource interface {
	UserBudget(ctx context.Context, userID string) (float64, error)
}

// SpendLedger exposes a caller's cumulative historical cost.
type SpendLedger interface {
	SumCost(ctx context.Context, userID string) (float64, error)
}

// Guard performs the pre-flight budget check. Both the ceiling and the
// spend total are fetched fresh on every call; there is deliberately no
// caching, and the check is not transactional with the eventual log
// write. Two concurrent requests can both pass before either's cost
// lands.
type Guard struct {
	budgets BudgetSource
	ledger  SpendLedger
}

func NewGuard(budgets BudgetSource, ledger SpendLedger) *Guard {
	return &Guard{budgets: budgets, ledger: ledger}
}

// Check returns a BudgetExceededError when spend >= budget. A caller
// with no budget row has a ceiling of zero and is always over.
func (g *Guard) Check(ctx context.Context, userID string) (spend, budget float64, err error) {
	budget, err = g.budgets.UserBudget(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch budget: %w", err)
	}
	spend, err = g.ledger.SumCost(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("sum spend: %w", err)
	}
	if spend >= budget {
		return spend, budget, &BudgetExceededError{Spend: spend, Budget: budget}
	}
	return spend, budget, nil
}
