package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError matches the OpenAI error response format.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message   string                 `json:"message"`
	Type      string                 `json:"type"`
	Code      string                 `json:"code"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	WriteErrorDetails(w, requestID, statusCode, errType, code, message, nil)
}

func WriteErrorDetails(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Message:   message,
			Type:      errType,
			Code:      code,
			RequestID: requestID,
			Details:   details,
		},
	})
}

func WriteAuthError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusUnauthorized, "authentication_error", "invalid_gateway_key", message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteNotFoundError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusNotFound, "invalid_request_error", "not_found", message)
}

// WriteBudgetExceededError reports the caller's current spend against
// their budget ceiling alongside the 429.
func WriteBudgetExceededError(w http.ResponseWriter, requestID string, spend, budget float64) {
	WriteErrorDetails(w, requestID, http.StatusTooManyRequests, "budget_error", "budget_exceeded",
		"Budget exceeded", map[string]interface{}{
			"current_spend": spend,
			"budget":        budget,
		})
}

// WriteUpstreamError reports total dispatch failure with attempt provenance.
func WriteUpstreamError(w http.ResponseWriter, requestID string, attempted []string, lastError string) {
	WriteErrorDetails(w, requestID, http.StatusBadGateway, "upstream_error", "all_providers_failed",
		"All providers failed", map[string]interface{}{
			"attempted_providers": attempted,
			"last_error":          lastError,
		})
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}
