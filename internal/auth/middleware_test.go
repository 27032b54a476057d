package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeCredentialStore struct {
	creds map[string]*Credential
	err   error
}

func (f *fakeCredentialStore) Lookup(_ context.Context, key string) (*Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.creds[key], nil
}

func runMiddleware(t *testing.T, store CredentialStore, authHeader string) (*httptest.ResponseRecorder, *Credential) {
	t.Helper()

	var captured *Credential
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = CredentialFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, captured
}

func TestMiddleware_MissingHeader(t *testing.T) {
	w, _ := runMiddleware(t, &fakeCredentialStore{}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_NotBearer(t *testing.T) {
	w, _ := runMiddleware(t, &fakeCredentialStore{}, "Basic abc123")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_WrongKeyPrefix(t *testing.T) {
	w, _ := runMiddleware(t, &fakeCredentialStore{}, "Bearer sk-not-a-gateway-key")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_UnknownKey(t *testing.T) {
	w, _ := runMiddleware(t, &fakeCredentialStore{creds: map[string]*Credential{}}, "Bearer gw_unknown")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_StoreError(t *testing.T) {
	w, _ := runMiddleware(t, &fakeCredentialStore{err: errors.New("db down")}, "Bearer gw_abc")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestMiddleware_ValidKey(t *testing.T) {
	store := &fakeCredentialStore{creds: map[string]*Credential{
		"gw_abc": {ID: "gw_abc", UserID: "user-1", RouterID: "rtr_1"},
	}}

	w, cred := runMiddleware(t, store, "Bearer gw_abc")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cred == nil {
		t.Fatal("expected credential in context")
	}
	if cred.UserID != "user-1" || cred.RouterID != "rtr_1" {
		t.Errorf("unexpected credential: %+v", cred)
	}
}

func TestGenerateKey(t *testing.T) {
	key := GenerateKey()
	if !strings.HasPrefix(key, KeyPrefix) {
		t.Errorf("expected %s prefix, got %q", KeyPrefix, key)
	}
	if key == GenerateKey() {
		t.Error("two generated keys are identical")
	}
}
