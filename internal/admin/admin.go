// Package admin exposes the management API: providers, routers and
// their rules, gateway keys, pricing tables, and usage logs. Every
// route requires the static admin token.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/relay-gateway/internal/httputil"
)

// KeyEncrypter seals provider API keys before they reach the database.
type KeyEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Handler serves the management API.
type Handler struct {
	store  Store
	logs   LogReader
	tally  MissingModelLister
	cipher KeyEncrypter
	token  string
}

func NewHandler(store Store, logs LogReader, tally MissingModelLister, cipher KeyEncrypter, token string) *Handler {
	return &Handler{
		store:  store,
		logs:   logs,
		tally:  tally,
		cipher: cipher,
		token:  token,
	}
}

// Routes returns the admin router, token middleware included.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireToken)

	r.Get("/providers", h.ListProviders)
	r.Post("/providers", h.CreateProvider)
	r.Put("/providers/{id}", h.UpdateProvider)
	r.Delete("/providers/{id}", h.DeleteProvider)

	r.Get("/routers", h.ListRouters)
	r.Post("/routers", h.CreateRouter)
	r.Delete("/routers/{id}", h.DeleteRouter)
	r.Get("/routers/{id}/rules", h.ListRules)
	r.Put("/routers/{id}/rules", h.ReplaceRules)

	r.Get("/keys", h.ListKeys)
	r.Post("/keys", h.CreateKey)
	r.Delete("/keys/{id}", h.DeactivateKey)

	r.Get("/models", h.ListGlobalRates)
	r.Post("/models", h.UpsertGlobalRate)
	r.Get("/user-models", h.ListUserRates)
	r.Post("/user-models", h.UpsertUserRate)
	r.Delete("/user-models/{id}", h.DeleteUserRate)

	r.Get("/logs", h.ListLogs)
	r.Get("/logs/summary", h.LogSummary)
	r.Get("/missing-models", h.ListMissingModels)

	return r
}

// requireToken rejects requests whose bearer token does not match the
// configured admin token. Comparison is constant-time.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			httputil.WriteError(w, "", http.StatusServiceUnavailable,
				"server_error", "admin_disabled", "Admin API is not configured")
			return
		}
		presented := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) != 1 {
			httputil.WriteError(w, "", http.StatusUnauthorized,
				"authentication_error", "invalid_admin_token", "Invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteBadRequestError(w, "", "Invalid JSON: "+err.Error())
		return false
	}
	return true
}
