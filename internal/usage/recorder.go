// Package usage persists per-request log rows and enforces the
// per-caller budget ceiling derived from them.
package usage

import (
	"context"
	"log/slog"
	"time"
)

// Entry is one api_logs row: the outcome of a single gateway request.
type Entry struct {
	ID               string
	UserID           string
	GatewayKeyID     string
	ProviderUsed     string
	ModelUsed        string
	StatusCode       int
	LatencyMs        int64
	PromptTokens     int
	CompletionTokens int
	TotalCost        float64
	IsCached         bool
	IsFailover       bool
	CreatedAt        time.Time
}

// EntryWriter appends log rows.
type EntryWriter interface {
	Insert(ctx context.Context, e Entry) error
}

const recordTimeout = 5 * time.Second

// Recorder writes usage rows off the request's critical path. The row is
// assembled synchronously by the caller; only the write is deferred.
type Recorder struct {
	store EntryWriter
}

func NewRecorder(store EntryWriter) *Recorder {
	return &Recorder{store: store}
}

// Record persists an entry fire-and-forget. A failed write is logged and
// never surfaced to the caller.
func (r *Recorder) Record(e Entry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.store.Insert(ctx, e); err != nil {
			slog.Error("failed to write usage log", "error", err, "log_id", e.ID, "user_id", e.UserID)
		}
	}()
}
