package token

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound    = errors.New("canvas token not found")
	ErrSealedToken = errors.New("stored token cannot be opened")
)

type (
	// Token is a user's Canvas API credential. The bearer token itself is
	// sealed at rest; only the service can open it.
	Token struct {
		UserID          string    `json:"-" db:"user_id"`
		BaseURL         string    `json:"base_url" db:"base_url"`
		Sealed          []byte    `json:"-" db:"sealed_token"`
		LastValidatedAt null.Time `json:"last_validated_at" db:"last_validated_at"` // UTC
		LastSyncedAt    null.Time `json:"last_synced_at" db:"last_synced_at"`       // UTC
		CreatedAt       time.Time `json:"created_at" db:"created_at"`               // UTC
		UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`               // UTC
	}

	Repository interface {
		// UpsertToken inserts or updates by user_id.
		UpsertToken(ctx context.Context, tok Token) (Token, error)
		GetToken(ctx context.Context, userID string) (Token, error)
		TouchLastSynced(ctx context.Context, userID string, at time.Time) error
	}
)
