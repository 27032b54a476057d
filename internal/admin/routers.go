package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/af-corp/relay-gateway/internal/httputil"
	"github.com/af-corp/relay-gateway/internal/types"
)

func (h *Handler) ListRouters(w http.ResponseWriter, r *http.Request) {
	routers, err := h.store.ListRouters(r.Context())
	if err != nil {
		slog.Error("failed to list routers", "error", err)
		httputil.WriteInternalError(w, "", "Failed to list routers")
		return
	}
	if routers == nil {
		routers = []types.Router{}
	}
	writeJSON(w, http.StatusOK, routers)
}

func (h *Handler) CreateRouter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	if !readJSON(w, r, &payload) {
		return
	}
	if payload.Name == "" {
		httputil.WriteBadRequestError(w, "", "name is required")
		return
	}

	rt := types.Router{ID: uuid.NewString(), UserID: payload.UserID, Name: payload.Name}
	if err := h.store.CreateRouter(r.Context(), rt); err != nil {
		slog.Error("failed to create router", "error", err, "name", rt.Name)
		httputil.WriteInternalError(w, "", "Failed to create router")
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

func (h *Handler) DeleteRouter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteRouter(r.Context(), id); err != nil {
		slog.Error("failed to delete router", "error", err, "id", id)
		httputil.WriteInternalError(w, "", "Failed to delete router")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	routerID := chi.URLParam(r, "id")
	rules, err := h.store.RulesForRouter(r.Context(), routerID)
	if err != nil {
		slog.Error("failed to list rules", "error", err, "router_id", routerID)
		httputil.WriteInternalError(w, "", "Failed to list rules")
		return
	}
	if rules == nil {
		rules = []types.RoutingRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// rulePayload is one entry of a rule-set replacement. Priorities are
// assigned from list position, so the payload carries none.
type rulePayload struct {
	Tier          string `json:"condition"`
	ProviderID    string `json:"provider_id"`
	AllowedModels string `json:"allowed_models"`
}

// ReplaceRules installs a router's complete rule set in list order.
func (h *Handler) ReplaceRules(w http.ResponseWriter, r *http.Request) {
	routerID := chi.URLParam(r, "id")
	var payload []rulePayload
	if !readJSON(w, r, &payload) {
		return
	}

	rules := make([]types.RoutingRule, 0, len(payload))
	for i, p := range payload {
		if p.Tier != types.TierPrimary && p.Tier != types.TierFallback {
			httputil.WriteBadRequestError(w, "", "condition must be primary or on_failure")
			return
		}
		if p.ProviderID == "" {
			httputil.WriteBadRequestError(w, "", "provider_id is required")
			return
		}
		rules = append(rules, types.RoutingRule{
			ID:            uuid.NewString(),
			RouterID:      routerID,
			Priority:      i,
			Tier:          p.Tier,
			ProviderID:    p.ProviderID,
			AllowedModels: p.AllowedModels,
		})
	}

	if err := h.store.ReplaceRules(r.Context(), routerID, rules); err != nil {
		slog.Error("failed to replace rules", "error", err, "router_id", routerID)
		httputil.WriteInternalError(w, "", "Failed to replace rules")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}
