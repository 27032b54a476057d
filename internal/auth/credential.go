package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyPrefix marks gateway credentials on the wire: "Bearer gw_<uuid>".
const KeyPrefix = "gw_"

// Credential is the identity a gateway key resolves to: the caller and
// the router whose rules govern dispatch.
type Credential struct {
	ID       string
	UserID   string
	RouterID string
	Name     string
}

// GenerateKey mints a new gateway key value.
func GenerateKey() string {
	return KeyPrefix + uuid.NewString()
}

// CredentialStore looks up gateway credential metadata by key value.
// Implementations return (nil, nil) for unknown or revoked keys.
type CredentialStore interface {
	Lookup(ctx context.Context, key string) (*Credential, error)
}

// PGCredentialStore implements CredentialStore over PostgreSQL. Lookups
// are intentionally uncached: revoking a key takes effect on the next
// request.
type PGCredentialStore struct {
	db *pgxpool.Pool
}

func NewPGCredentialStore(db *pgxpool.Pool) *PGCredentialStore {
	return &PGCredentialStore{db: db}
}

func (s *PGCredentialStore) Lookup(ctx context.Context, key string) (*Credential, error) {
	var cred Credential
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, router_id, COALESCE(name, '')
		FROM gateway_keys
		WHERE id = $1 AND is_active = TRUE
	`, key).Scan(&cred.ID, &cred.UserID, &cred.RouterID, &cred.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query gateway_keys: %w", err)
	}
	return &cred, nil
}
