package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/af-corp/relay-gateway/internal/router/upstream"
	"github.com/af-corp/relay-gateway/internal/telemetry"
	"github.com/af-corp/relay-gateway/internal/types"
)

// AllProvidersFailedError means every eligible rule in both tiers was
// tried and none produced a usable response.
type AllProvidersFailedError struct {
	Attempted []string
	LastErr   error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed after %d attempts: %v", len(e.Attempted), e.LastErr)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.LastErr }

// ProviderStore resolves a rule's provider reference. A missing
// provider is (nil, nil), not an error.
type ProviderStore interface {
	ProviderByID(ctx context.Context, id string) (*types.Provider, error)
}

// KeyDecrypter recovers a provider's stored API key.
type KeyDecrypter interface {
	Decrypt(value string) string
}

// Exchanger performs the outbound exchange for one provider plan.
type Exchanger interface {
	Exchange(ctx context.Context, plan upstream.Plan, body []byte) (*upstream.Result, error)
}

// Result is a completed dispatch: the winning provider's response plus
// the trail of what was attempted on the way there.
type Result struct {
	Body         []byte
	StatusCode   int
	ProviderName string
	URLUsed      string
	// Provider is the display form "name (url)" recorded in usage logs.
	Provider  string
	Usage     types.Usage
	Failover  bool
	Attempted []string
}

// Dispatcher walks a rule set in tier order and returns the first
// successful provider response.
type Dispatcher struct {
	providers ProviderStore
	keys      KeyDecrypter
	exchanger Exchanger
	metrics   *telemetry.Metrics
}

func NewDispatcher(providers ProviderStore, keys KeyDecrypter, exchanger Exchanger, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{
		providers: providers,
		keys:      keys,
		exchanger: exchanger,
		metrics:   metrics,
	}
}

// Dispatch tries every eligible rule strictly in order: the primary tier
// first, then the fallback tier. A rule is skipped without counting as
// an attempt when its provider is missing, disabled, or does not allow
// the requested model. The first successful exchange wins; nothing runs
// after it.
func (d *Dispatcher) Dispatch(ctx context.Context, set *RuleSet, model string, body []byte) (*Result, error) {
	var attempted []string
	var lastErr error

	for tierIdx, tier := range [][]types.RoutingRule{set.Primary, set.Fallback} {
		onFallback := tierIdx == 1
		for _, rule := range tier {
			provider, err := d.providers.ProviderByID(ctx, rule.ProviderID)
			if err != nil {
				return nil, fmt.Errorf("load provider %s: %w", rule.ProviderID, err)
			}
			if provider == nil || !provider.Enabled {
				continue
			}
			if !rule.Allows(model) {
				continue
			}

			plan, err := upstream.BuildPlan(provider, d.keys.Decrypt(provider.APIKeyEncrypted))
			if err != nil {
				attempted = append(attempted, provider.Name)
				lastErr = err
				d.metrics.RecordAttempt(provider.Name, "error")
				slog.Warn("provider plan rejected",
					"provider", provider.Name,
					"error", err,
				)
				continue
			}

			attempted = append(attempted, provider.Name)
			exchange, err := d.exchanger.Exchange(ctx, plan, body)
			if err != nil {
				lastErr = err
				d.metrics.RecordAttempt(provider.Name, "error")
				continue
			}

			d.metrics.RecordAttempt(provider.Name, "success")
			urlUsed := upstream.DisplayURL(exchange.URLUsed)
			return &Result{
				Body:         exchange.Body,
				StatusCode:   exchange.StatusCode,
				ProviderName: provider.Name,
				URLUsed:      urlUsed,
				Provider:     fmt.Sprintf("%s (%s)", provider.Name, urlUsed),
				Usage:        exchange.Usage,
				Failover:     onFallback || len(attempted) > 1,
				Attempted:    attempted,
			}, nil
		}
	}

	return nil, &AllProvidersFailedError{Attempted: attempted, LastErr: lastErr}
}
