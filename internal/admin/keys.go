package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/relay-gateway/internal/auth"
	"github.com/af-corp/relay-gateway/internal/httputil"
)

// ListKeys returns key metadata with the credential redacted to its
// prefix. The full key is shown exactly once, at creation.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListKeys(r.Context())
	if err != nil {
		slog.Error("failed to list keys", "error", err)
		httputil.WriteInternalError(w, "", "Failed to list keys")
		return
	}

	type redactedKey struct {
		Key
		KeyPrefix string `json:"key_prefix"`
	}
	redacted := make([]redactedKey, 0, len(keys))
	for _, k := range keys {
		prefix := k.ID
		if len(prefix) > 11 {
			prefix = prefix[:11] + "..."
		}
		k.ID = ""
		redacted = append(redacted, redactedKey{Key: k, KeyPrefix: prefix})
	}
	writeJSON(w, http.StatusOK, redacted)
}

func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID   string `json:"user_id"`
		RouterID string `json:"router_id"`
		Name     string `json:"name"`
	}
	if !readJSON(w, r, &payload) {
		return
	}
	if payload.RouterID == "" {
		httputil.WriteBadRequestError(w, "", "router_id is required")
		return
	}

	k := Key{
		ID:       auth.GenerateKey(),
		UserID:   payload.UserID,
		RouterID: payload.RouterID,
		Name:     payload.Name,
		IsActive: true,
	}
	if err := h.store.CreateKey(r.Context(), k); err != nil {
		slog.Error("failed to create key", "error", err, "router_id", k.RouterID)
		httputil.WriteInternalError(w, "", "Failed to create key")
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (h *Handler) DeactivateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeactivateKey(r.Context(), id); err != nil {
		slog.Error("failed to deactivate key", "error", err)
		httputil.WriteInternalError(w, "", "Failed to deactivate key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
