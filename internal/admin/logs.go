package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/af-corp/relay-gateway/internal/httputil"
	"github.com/af-corp/relay-gateway/internal/usage"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httputil.WriteBadRequestError(w, "", "user_id query parameter is required")
		return
	}

	limit := queryInt(r, "limit", defaultLogLimit)
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	offset := queryInt(r, "offset", 0)

	entries, err := h.logs.List(r.Context(), userID, limit, offset)
	if err != nil {
		slog.Error("failed to list logs", "error", err, "user_id", userID)
		httputil.WriteInternalError(w, "", "Failed to list logs")
		return
	}
	if entries == nil {
		entries = []usage.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// LogSummary returns the caller's request count and cumulative spend
// against their configured budget ceiling.
func (h *Handler) LogSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httputil.WriteBadRequestError(w, "", "user_id query parameter is required")
		return
	}

	count, err := h.logs.Count(r.Context(), userID)
	if err != nil {
		slog.Error("failed to count logs", "error", err, "user_id", userID)
		httputil.WriteInternalError(w, "", "Failed to summarize logs")
		return
	}
	total, err := h.logs.SumCost(r.Context(), userID)
	if err != nil {
		slog.Error("failed to sum log cost", "error", err, "user_id", userID)
		httputil.WriteInternalError(w, "", "Failed to summarize logs")
		return
	}
	budget, err := h.logs.UserBudget(r.Context(), userID)
	if err != nil {
		slog.Error("failed to fetch budget", "error", err, "user_id", userID)
		httputil.WriteInternalError(w, "", "Failed to summarize logs")
		return
	}

	usedPct := 0.0
	if budget > 0 {
		usedPct = total / budget * 100
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_count":          count,
		"total_cost_usd":         total,
		"budget":                 budget,
		"budget_remaining":       budget - total,
		"budget_used_percentage": usedPct,
	})
}

// ListMissingModels reports which unpriced models callers asked for and
// how often, so operators know what pricing entries to add.
func (h *Handler) ListMissingModels(w http.ResponseWriter, r *http.Request) {
	counts, err := h.tally.List(r.Context())
	if err != nil {
		slog.Error("failed to read missing-model tally", "error", err)
		httputil.WriteInternalError(w, "", "Failed to read missing models")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
