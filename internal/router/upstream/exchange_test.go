package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testExchanger() *Exchanger {
	return NewExchanger(5*time.Second, 10)
}

func jsonServer(t *testing.T, calls *atomic.Int64, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExchange_FirstURLSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := jsonServer(t, &calls, `{"id":"resp-1","usage":{"prompt_tokens":12,"completion_tokens":34}}`)

	plan := Plan{ProviderName: "p", URLs: []string{srv.URL}, Headers: http.Header{}}
	result, err := testExchanger().Exchange(context.Background(), plan, []byte(`{"model":"m"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URLUsed != srv.URL {
		t.Errorf("URLUsed = %q, want %q", result.URLUsed, srv.URL)
	}
	if result.Usage.PromptTokens != 12 || result.Usage.CompletionTokens != 34 {
		t.Errorf("unexpected usage: %+v", result.Usage)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestExchange_FallsThroughToSecondURL(t *testing.T) {
	var aCalls, bCalls atomic.Int64
	// First URL answers with a non-JSON body.
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		aCalls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srvA.Close()
	srvB := jsonServer(t, &bCalls, `{"ok":true}`)

	plan := Plan{ProviderName: "custom", URLs: []string{srvA.URL, srvB.URL}, Headers: http.Header{}}
	result, err := testExchanger().Exchange(context.Background(), plan, []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URLUsed != srvB.URL {
		t.Errorf("URLUsed = %q, want second URL %q", result.URLUsed, srvB.URL)
	}
	if aCalls.Load() != 1 || bCalls.Load() != 1 {
		t.Errorf("expected exactly one call each, got a=%d b=%d", aCalls.Load(), bCalls.Load())
	}
}

func TestExchange_MissingUsageDefaultsToZero(t *testing.T) {
	var calls atomic.Int64
	srv := jsonServer(t, &calls, `{"id":"resp-2"}`)

	plan := Plan{ProviderName: "p", URLs: []string{srv.URL}, Headers: http.Header{}}
	result, err := testExchanger().Exchange(context.Background(), plan, []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Usage.PromptTokens != 0 || result.Usage.CompletionTokens != 0 {
		t.Errorf("expected zero usage, got %+v", result.Usage)
	}
}

func TestExchange_FailureModes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx status", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
		}},
		{"non-json content type", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("ok"))
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"usage":`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			plan := Plan{ProviderName: "p", URLs: []string{srv.URL}, Headers: http.Header{}}
			_, err := testExchanger().Exchange(context.Background(), plan, []byte(`{}`))

			var exhausted *ExhaustedError
			if !errors.As(err, &exhausted) {
				t.Fatalf("expected ExhaustedError, got %v", err)
			}
			if exhausted.Provider != "p" {
				t.Errorf("expected provider p, got %s", exhausted.Provider)
			}
			if exhausted.LastErr == nil {
				t.Error("expected last error to be carried")
			}
		})
	}
}

func TestExchange_SendsPlanHeaders(t *testing.T) {
	var gotAuth, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", "Bearer sk-test")

	plan := Plan{ProviderName: "p", URLs: []string{srv.URL}, Headers: headers}
	if _, err := testExchanger().Exchange(context.Background(), plan, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
}

func TestDisplayURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain", "https://api.example.com/v1/chat", "https://api.example.com/v1/chat"},
		{"key parameter stripped", "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent?key=sk-123", "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"},
		{"empty query", "https://api.example.com/v1/chat?", "https://api.example.com/v1/chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayURL(tt.url); got != tt.want {
				t.Errorf("DisplayURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
