// Package upstream builds provider-specific dispatch plans and performs
// the outbound HTTP exchange, trying a provider's candidate URLs
// strictly in order.
package upstream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/af-corp/relay-gateway/internal/types"
)

// Well-known endpoints per provider kind.
const (
	openAIURL     = "https://api.openai.com/v1/chat/completions"
	googleURL     = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"
	anthropicURL  = "https://api.anthropic.com/v1/messages"
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

	anthropicVersion = "2023-06-01"
)

// ErrMissingEndpoint means a custom provider has no configured URLs.
var ErrMissingEndpoint = errors.New("custom provider requires at least one base URL")

// Plan is the concrete wire plan for one provider: candidate URLs in
// trial order plus the header set every candidate shares.
type Plan struct {
	ProviderName string
	URLs         []string
	Headers      http.Header
}

// BuildPlan maps a provider and its decrypted API key onto that
// provider's wire dialect. The kind-to-dialect mapping is fixed.
func BuildPlan(p *types.Provider, apiKey string) (Plan, error) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	plan := Plan{ProviderName: p.Name, Headers: headers}

	switch p.Kind {
	case types.KindOpenAI:
		plan.URLs = []string{openAIURL}
		headers.Set("Authorization", "Bearer "+apiKey)

	case types.KindGoogle, types.KindGemini:
		// Google wants the key as a query parameter, not a header.
		plan.URLs = []string{googleURL + "?key=" + apiKey}

	case types.KindAnthropic:
		plan.URLs = []string{anthropicURL}
		headers.Set("x-api-key", apiKey)
		headers.Set("anthropic-version", anthropicVersion)

	case types.KindOpenRouter:
		// Canonical endpoint first; extra configured URLs become
		// fallback candidates within the same provider.
		plan.URLs = append([]string{openRouterURL}, p.ConfiguredURLs()...)
		headers.Set("Authorization", "Bearer "+apiKey)

	case types.KindCustom:
		urls := p.ConfiguredURLs()
		if len(urls) == 0 {
			return Plan{}, ErrMissingEndpoint
		}
		plan.URLs = urls
		headers.Set("Authorization", "Bearer "+apiKey)

	default:
		return Plan{}, fmt.Errorf("unsupported provider type %q", p.Kind)
	}

	return plan, nil
}
