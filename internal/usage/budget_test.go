package usage

import (
	"context"
	"errors"
	"testing"
)

type fakeBudgets struct {
	budget float64
	err    error
}

func (f *fakeBudgets) UserBudget(_ context.Context, _ string) (float64, error) {
	return f.budget, f.err
}

type fakeLedger struct {
	spend float64
	err   error
}

func (f *fakeLedger) SumCost(_ context.Context, _ string) (float64, error) {
	return f.spend, f.err
}

func TestGuard_Check(t *testing.T) {
	tests := []struct {
		name       string
		spend      float64
		budget     float64
		wantExceed bool
	}{
		{"under budget", 9.99, 10, false},
		{"exactly at budget", 10, 10, true},
		{"over budget", 10.01, 10, true},
		{"zero budget zero spend", 0, 0, true},
		{"fresh caller with budget", 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(&fakeBudgets{budget: tt.budget}, &fakeLedger{spend: tt.spend})

			spend, budget, err := g.Check(context.Background(), "user-1")
			if tt.wantExceed {
				var exceeded *BudgetExceededError
				if !errors.As(err, &exceeded) {
					t.Fatalf("expected BudgetExceededError, got %v", err)
				}
				if exceeded.Spend != tt.spend || exceeded.Budget != tt.budget {
					t.Errorf("error carries spend=%v budget=%v, want %v/%v",
						exceeded.Spend, exceeded.Budget, tt.spend, tt.budget)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spend != tt.spend || budget != tt.budget {
				t.Errorf("Check returned spend=%v budget=%v, want %v/%v", spend, budget, tt.spend, tt.budget)
			}
		})
	}
}

func TestGuard_BudgetSourceError(t *testing.T) {
	g := NewGuard(&fakeBudgets{err: errors.New("db down")}, &fakeLedger{})

	_, _, err := g.Check(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var exceeded *BudgetExceededError
	if errors.As(err, &exceeded) {
		t.Fatal("store errors must not be reported as budget exceeded")
	}
}

func TestGuard_LedgerError(t *testing.T) {
	g := NewGuard(&fakeBudgets{budget: 10}, &fakeLedger{err: errors.New("db down")})

	_, _, err := g.Check(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
}
