package types

// Usage is the token accounting block read from an upstream response.
// Absent fields decode to zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// GatewayMetadata is attached to every successful gateway response under
// the _gateway_metadata key.
type GatewayMetadata struct {
	Cost               float64  `json:"cost"`
	Provider           string   `json:"provider"`
	LatencyMs          int64    `json:"latency_ms"`
	IsFailover         bool     `json:"is_failover"`
	AttemptedProviders []string `json:"attempted_providers"`
}
