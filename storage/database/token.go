package database

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classmirror/core/token"
)

type tokenRepository struct {
	db *DB
}

var _ token.Repository = (*tokenRepository)(nil) // interface compliance check

func NewTokenRepository(db *DB) *tokenRepository {
	return &tokenRepository{db: db}
}

func (repo tokenRepository) UpsertToken(ctx context.Context, tok token.Token) (token.Token, error) {
	query := `
		INSERT INTO canvas_tokens (user_id, base_url, sealed_token, last_validated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			sealed_token = EXCLUDED.sealed_token,
			last_validated_at = EXCLUDED.last_validated_at,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, query,
		tok.UserID, tok.BaseURL, tok.Sealed, tok.LastValidatedAt,
		tok.CreatedAt.UTC(), tok.UpdatedAt.UTC(),
	)
	if err != nil {
		return token.Token{}, errors.Wrap(err, "upserting token")
	}
	return tok, nil
}

func (repo tokenRepository) GetToken(ctx context.Context, userID string) (token.Token, error) {
	var tok token.Token
	query := `SELECT * FROM canvas_tokens WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &tok, query, userID); err != nil {
		return token.Token{}, trapNoRowsErr(err, token.ErrNotFound, "getting token")
	}
	return tok, nil
}

func (repo tokenRepository) TouchLastSynced(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE canvas_tokens SET last_synced_at = $1, updated_at = $1 WHERE user_id = $2`
	res, err := repo.db.ExecContext(ctx, query, at.UTC(), userID)
	if err != nil {
		return errors.Wrap(err, "stamping last sync")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return token.ErrNotFound
	}
	return nil
}
