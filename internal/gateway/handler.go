// Package gateway implements the request pipeline behind
// POST /v1/chat/completions: authenticate, load routing rules, price the
// model, enforce the caller's budget, dispatch with failover, then log
// usage and return the winning provider's response.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/relay-gateway/internal/auth"
	"github.com/af-corp/relay-gateway/internal/httputil"
	"github.com/af-corp/relay-gateway/internal/pricing"
	"github.com/af-corp/relay-gateway/internal/router"
	"github.com/af-corp/relay-gateway/internal/telemetry"
	"github.com/af-corp/relay-gateway/internal/types"
	"github.com/af-corp/relay-gateway/internal/usage"
)

// ModelTally counts requests for models that have no pricing entry.
type ModelTally interface {
	Record(ctx context.Context, model string) error
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	evaluator  *router.Evaluator
	dispatcher *router.Dispatcher
	resolver   *pricing.Resolver
	tally      ModelTally
	guard      *usage.Guard
	recorder   *usage.Recorder
	metrics    *telemetry.Metrics
}

func NewHandler(
	evaluator *router.Evaluator,
	dispatcher *router.Dispatcher,
	resolver *pricing.Resolver,
	tally ModelTally,
	guard *usage.Guard,
	recorder *usage.Recorder,
	metrics *telemetry.Metrics,
) *Handler {
	return &Handler{
		evaluator:  evaluator,
		dispatcher: dispatcher,
		resolver:   resolver,
		tally:      tally,
		guard:      guard,
		recorder:   recorder,
		metrics:    metrics,
	}
}

// ChatCompletions handles POST /v1/chat/completions
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	cred, ok := auth.CredentialFromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	set, err := h.evaluator.Evaluate(r.Context(), cred.RouterID)
	if err != nil {
		if errors.Is(err, router.ErrNoRulesConfigured) {
			httputil.WriteBadRequestError(w, reqID, "No routing rules configured for this key")
			return
		}
		slog.Error("failed to load routing rules", "error", err, "request_id", reqID, "router_id", cred.RouterID)
		httputil.WriteInternalError(w, reqID, "Failed to load routing rules")
		return
	}

	model, _ := payload["model"].(string)
	if model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}

	// Streaming is not supported; the flag is silently forced off so the
	// upstream returns a complete JSON body.
	if stream, _ := payload["stream"].(bool); stream {
		payload["stream"] = false
		if body, err = json.Marshal(payload); err != nil {
			httputil.WriteInternalError(w, reqID, "Failed to prepare request")
			return
		}
	}

	rate, err := h.resolver.Resolve(r.Context(), cred.UserID, model)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownModel) {
			h.metrics.RecordMissingModel(model)
			// The tally is advisory; a failed write must not block the
			// response.
			if err := h.tally.Record(r.Context(), model); err != nil {
				slog.Warn("failed to record missing model", "error", err, "model", model)
			}
			httputil.WriteBadRequestError(w, reqID, "Model not supported: no pricing configured for "+model)
			return
		}
		slog.Error("pricing lookup failed", "error", err, "request_id", reqID, "model", model)
		httputil.WriteInternalError(w, reqID, "Failed to resolve model pricing")
		return
	}

	if _, _, err := h.guard.Check(r.Context(), cred.UserID); err != nil {
		var exceeded *usage.BudgetExceededError
		if errors.As(err, &exceeded) {
			httputil.WriteBudgetExceededError(w, reqID, exceeded.Spend, exceeded.Budget)
			return
		}
		slog.Error("budget check failed", "error", err, "request_id", reqID, "user_id", cred.UserID)
		httputil.WriteInternalError(w, reqID, "Failed to check budget")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), set, model, body)
	if err != nil {
		var failed *router.AllProvidersFailedError
		if errors.As(err, &failed) {
			h.recordOutcome(cred, reqID, model, "none", receivedAt, http.StatusBadGateway, types.Usage{}, 0, false)
			lastError := ""
			if failed.LastErr != nil {
				lastError = failed.LastErr.Error()
			}
			slog.Error("all providers failed",
				"request_id", reqID,
				"model", model,
				"attempted", failed.Attempted,
				"error", lastError,
			)
			httputil.WriteUpstreamError(w, reqID, failed.Attempted, lastError)
			return
		}
		slog.Error("dispatch failed", "error", err, "request_id", reqID, "model", model)
		httputil.WriteInternalError(w, reqID, "Failed to dispatch request")
		return
	}

	cost := pricing.Cost(result.Usage.PromptTokens, result.Usage.CompletionTokens, rate)
	latency := time.Since(receivedAt).Milliseconds()

	h.recordOutcome(cred, reqID, model, result.Provider, receivedAt, http.StatusOK, result.Usage, cost, result.Failover)

	slog.Info("request completed",
		"request_id", reqID,
		"model", model,
		"provider", result.ProviderName,
		"url_used", result.URLUsed,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
		"cost_usd", cost,
		"duration_ms", latency,
		"is_failover", result.Failover,
		"user_id", cred.UserID,
	)

	writeWithMetadata(w, reqID, result, types.GatewayMetadata{
		Cost:               cost,
		Provider:           result.Provider,
		LatencyMs:          latency,
		IsFailover:         result.Failover,
		AttemptedProviders: result.Attempted,
	})
}

// recordOutcome emits metrics and queues the usage log row for one
// finished request, successful or not.
func (h *Handler) recordOutcome(cred *auth.Credential, reqID, model, provider string, receivedAt time.Time, status int, u types.Usage, cost float64, failover bool) {
	latency := time.Since(receivedAt).Milliseconds()

	h.metrics.RecordRequest(telemetry.RequestLabels{
		Model:            model,
		Provider:         provider,
		Status:           strconv.Itoa(status),
		DurationMs:       float64(latency),
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		CostUSD:          cost,
		Failover:         failover,
	})

	h.recorder.Record(usage.Entry{
		ID:               uuid.NewString(),
		UserID:           cred.UserID,
		GatewayKeyID:     cred.ID,
		ProviderUsed:     provider,
		ModelUsed:        model,
		StatusCode:       status,
		LatencyMs:        latency,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalCost:        cost,
		IsFailover:       failover,
		CreatedAt:        time.Now().UTC(),
	})
}

// writeWithMetadata injects the _gateway_metadata block into the
// provider's JSON body and writes it out.
func writeWithMetadata(w http.ResponseWriter, reqID string, result *router.Result, meta types.GatewayMetadata) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(result.Body, &envelope); err != nil {
		// Non-object JSON (the exchanger only guarantees valid JSON)
		// is passed through untouched.
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", reqID)
		w.WriteHeader(result.StatusCode)
		w.Write(result.Body)
		return
	}
	envelope["_gateway_metadata"] = meta

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(result.StatusCode)
	json.NewEncoder(w).Encode(envelope)
}
