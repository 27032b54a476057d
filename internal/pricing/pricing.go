// Package pricing resolves model names to cost rates and computes
// per-request cost. The global pricing table is authoritative; a
// per-caller custom table is consulted only when the model is absent
// from the global one.
package pricing

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownModel means the model is priced in neither the global nor
// the caller's custom table. The request must be rejected before any
// dispatch attempt.
var ErrUnknownModel = errors.New("unknown model")

// Rate sources.
const (
	SourceGlobal = "global"
	SourceUser   = "user"
)

// Rate is a per-million-token cost pair for one model.
type Rate struct {
	InputPerMilTokens  float64
	OutputPerMilTokens float64
	Source             string
}

// Store looks up rates in the two pricing tables. Implementations return
// (nil, nil) when the model has no entry.
type Store interface {
	GlobalRate(ctx context.Context, model string) (*Rate, error)
	UserRate(ctx context.Context, userID, model string) (*Rate, error)
}

// Resolver resolves a model name to a rate, global table first.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, userID, model string) (Rate, error) {
	global, err := r.store.GlobalRate(ctx, model)
	if err != nil {
		return Rate{}, fmt.Errorf("lookup global rate: %w", err)
	}
	if global != nil {
		global.Source = SourceGlobal
		return *global, nil
	}

	custom, err := r.store.UserRate(ctx, userID, model)
	if err != nil {
		return Rate{}, fmt.Errorf("lookup user rate: %w", err)
	}
	if custom != nil {
		custom.Source = SourceUser
		return *custom, nil
	}

	return Rate{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
}

// Cost converts token counts and a rate into a monetary amount. Pure;
// token counts are non-negative.
func Cost(promptTokens, completionTokens int, rate Rate) float64 {
	inputCost := float64(promptTokens) / 1_000_000 * rate.InputPerMilTokens
	outputCost := float64(completionTokens) / 1_000_000 * rate.OutputPerMilTokens
	return inputCost + outputCost
}
