package types

import (
	"encoding/json"
	"strings"
)

// Provider kinds understood by the upstream planner. The set is closed:
// adding a kind means adding a variant to the planner, not a plugin.
const (
	KindOpenAI     = "openai"
	KindGoogle     = "google"
	KindGemini     = "gemini"
	KindAnthropic  = "anthropic"
	KindOpenRouter = "openrouter"
	KindCustom     = "custom"
)

// Provider is one configured upstream endpoint/credential set.
type Provider struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Kind            string `json:"provider_type"`
	BaseURL         string `json:"base_url,omitempty"`
	BaseURLs        string `json:"base_urls,omitempty"` // JSON array, e.g. ["https://a","https://b"]
	APIKeyEncrypted string `json:"-"`
	Enabled         bool   `json:"is_enabled"`
}

// ConfiguredURLs returns the caller-configured endpoint list. base_urls
// (JSON array) wins over the legacy single base_url column.
func (p *Provider) ConfiguredURLs() []string {
	if p.BaseURLs != "" {
		var urls []string
		if err := json.Unmarshal([]byte(p.BaseURLs), &urls); err == nil && len(urls) > 0 {
			return urls
		}
	}
	if p.BaseURL != "" {
		return []string{p.BaseURL}
	}
	return nil
}

// Routing rule tiers as stored in routing_rules.condition.
const (
	TierPrimary  = "primary"
	TierFallback = "on_failure"
)

// RoutingRule is one (priority, tier, provider, allow-list) entry of a router.
type RoutingRule struct {
	ID            string `json:"id"`
	RouterID      string `json:"router_id"`
	Priority      int    `json:"priority"`
	Tier          string `json:"condition"`
	ProviderID    string `json:"provider_id"`
	AllowedModels string `json:"allowed_models,omitempty"`
}

// Allows reports whether this rule permits the requested model. An empty
// allow-list permits everything; otherwise the comma-delimited entries are
// whitespace-trimmed and matched exactly (case-sensitive).
func (r *RoutingRule) Allows(model string) bool {
	if r.AllowedModels == "" {
		return true
	}
	for _, m := range strings.Split(r.AllowedModels, ",") {
		if strings.TrimSpace(m) == model {
			return true
		}
	}
	return false
}
