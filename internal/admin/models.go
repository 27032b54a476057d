package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/af-corp/relay-gateway/internal/httputil"
)

func (h *Handler) ListGlobalRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.store.ListGlobalRates(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		slog.Error("failed to list model costs", "error", err)
		httputil.WriteInternalError(w, "", "Failed to list model costs")
		return
	}
	if rates == nil {
		rates = []GlobalRate{}
	}
	writeJSON(w, http.StatusOK, rates)
}

func (h *Handler) UpsertGlobalRate(w http.ResponseWriter, r *http.Request) {
	var rate GlobalRate
	if !readJSON(w, r, &rate) {
		return
	}
	if rate.ModelName == "" {
		httputil.WriteBadRequestError(w, "", "model_name is required")
		return
	}
	if err := h.store.UpsertGlobalRate(r.Context(), rate); err != nil {
		slog.Error("failed to upsert model cost", "error", err, "model", rate.ModelName)
		httputil.WriteInternalError(w, "", "Failed to save model cost")
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (h *Handler) ListUserRates(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httputil.WriteBadRequestError(w, "", "user_id query parameter is required")
		return
	}
	rates, err := h.store.ListUserRates(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list user model costs", "error", err, "user_id", userID)
		httputil.WriteInternalError(w, "", "Failed to list user model costs")
		return
	}
	if rates == nil {
		rates = []UserRate{}
	}
	writeJSON(w, http.StatusOK, rates)
}

func (h *Handler) UpsertUserRate(w http.ResponseWriter, r *http.Request) {
	var rate UserRate
	if !readJSON(w, r, &rate) {
		return
	}
	if rate.UserID == "" || rate.ModelName == "" {
		httputil.WriteBadRequestError(w, "", "user_id and model_name are required")
		return
	}
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if err := h.store.UpsertUserRate(r.Context(), rate); err != nil {
		slog.Error("failed to upsert user model cost", "error", err, "model", rate.ModelName)
		httputil.WriteInternalError(w, "", "Failed to save user model cost")
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (h *Handler) DeleteUserRate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteUserRate(r.Context(), id); err != nil {
		slog.Error("failed to delete user model cost", "error", err, "id", id)
		httputil.WriteInternalError(w, "", "Failed to delete user model cost")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
