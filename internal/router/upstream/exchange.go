package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/af-corp/relay-gateway/internal/types"
)

// ExhaustedError means every candidate URL of a single provider failed.
type ExhaustedError struct {
	Provider string
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("provider %s exhausted: %v", e.Provider, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Result is a successful exchange: the upstream JSON body, which URL
// produced it, and the token usage read from it.
type Result struct {
	Body       []byte
	StatusCode int
	URLUsed    string
	Usage      types.Usage
}

// Exchanger performs provider HTTP exchanges with a shared client.
type Exchanger struct {
	client *http.Client
}

// NewExchanger builds an exchanger. The request timeout comes from
// configuration; zero means no timeout.
func NewExchanger(timeout time.Duration, maxIdleConns int) *Exchanger {
	return &Exchanger{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConns,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// DisplayURL strips the query string from a URL. Some providers carry
// the API key as a query parameter, so only the display form may reach
// logs or stored metadata.
func DisplayURL(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		return url[:i]
	}
	return url
}

// Exchange POSTs body to each candidate URL in order and returns the
// first well-formed JSON response. A non-2xx status, a non-JSON content
// type, an empty body, or unparseable JSON all fail that URL and move
// on to the next candidate. When every URL fails, the last error is
// wrapped in an ExhaustedError.
func (e *Exchanger) Exchange(ctx context.Context, plan Plan, body []byte) (*Result, error) {
	var lastErr error
	for _, url := range plan.URLs {
		result, err := e.tryURL(ctx, plan, url, body)
		if err != nil {
			lastErr = err
			slog.Warn("upstream attempt failed",
				"provider", plan.ProviderName,
				"url", DisplayURL(url),
				"error", err,
			)
			continue
		}
		return result, nil
	}
	return nil, &ExhaustedError{Provider: plan.ProviderName, LastErr: lastErr}
}

func (e *Exchanger) tryURL(ctx context.Context, plan Plan, url string, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, values := range plan.Headers {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("non-JSON content type %q", ct)
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	// Token counts default to zero when the usage block is absent.
	var envelope struct {
		Usage types.Usage `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}

	return &Result{
		Body:       respBody,
		StatusCode: resp.StatusCode,
		URLUsed:    url,
		Usage:      envelope.Usage,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
