package types

import "time"

// Router is a named routing configuration a gateway key binds to. Its
// behavior lives entirely in its routing rules.
type Router struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
