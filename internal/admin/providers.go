package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/af-corp/relay-gateway/internal/httputil"
	"github.com/af-corp/relay-gateway/internal/types"
)

// providerPayload is the write shape for providers. The API key arrives
// in plaintext and is sealed before it touches the store; it is never
// echoed back.
type providerPayload struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Kind     string `json:"provider_type"`
	BaseURL  string `json:"base_url"`
	BaseURLs string `json:"base_urls"`
	APIKey   string `json:"api_key"`
	Enabled  *bool  `json:"is_enabled"`
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.store.ListProviders(r.Context())
	if err != nil {
		slog.Error("failed to list providers", "error", err)
		httputil.WriteInternalError(w, "", "Failed to list providers")
		return
	}
	if providers == nil {
		providers = []types.Provider{}
	}
	writeJSON(w, http.StatusOK, providers)
}

func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var payload providerPayload
	if !readJSON(w, r, &payload) {
		return
	}
	if payload.Name == "" || payload.Kind == "" {
		httputil.WriteBadRequestError(w, "", "name and provider_type are required")
		return
	}

	encrypted := ""
	if payload.APIKey != "" {
		var err error
		if encrypted, err = h.cipher.Encrypt(payload.APIKey); err != nil {
			slog.Error("failed to encrypt provider key", "error", err)
			httputil.WriteInternalError(w, "", "Failed to encrypt API key")
			return
		}
	}

	enabled := true
	if payload.Enabled != nil {
		enabled = *payload.Enabled
	}
	p := types.Provider{
		ID:              uuid.NewString(),
		UserID:          payload.UserID,
		Name:            payload.Name,
		Kind:            payload.Kind,
		BaseURL:         payload.BaseURL,
		BaseURLs:        payload.BaseURLs,
		APIKeyEncrypted: encrypted,
		Enabled:         enabled,
	}
	if err := h.store.CreateProvider(r.Context(), p); err != nil {
		slog.Error("failed to create provider", "error", err, "name", p.Name)
		httputil.WriteInternalError(w, "", "Failed to create provider")
		return
	}

	p.APIKeyEncrypted = ""
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload providerPayload
	if !readJSON(w, r, &payload) {
		return
	}

	encrypted := ""
	if payload.APIKey != "" {
		var err error
		if encrypted, err = h.cipher.Encrypt(payload.APIKey); err != nil {
			slog.Error("failed to encrypt provider key", "error", err)
			httputil.WriteInternalError(w, "", "Failed to encrypt API key")
			return
		}
	}

	enabled := true
	if payload.Enabled != nil {
		enabled = *payload.Enabled
	}
	p := types.Provider{
		ID:              id,
		Name:            payload.Name,
		Kind:            payload.Kind,
		BaseURL:         payload.BaseURL,
		BaseURLs:        payload.BaseURLs,
		APIKeyEncrypted: encrypted,
		Enabled:         enabled,
	}
	if err := h.store.UpdateProvider(r.Context(), p); err != nil {
		slog.Error("failed to update provider", "error", err, "id", id)
		httputil.WriteInternalError(w, "", "Failed to update provider")
		return
	}

	p.APIKeyEncrypted = ""
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteProvider(r.Context(), id); err != nil {
		slog.Error("failed to delete provider", "error", err, "id", id)
		httputil.WriteInternalError(w, "", "Failed to delete provider")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
