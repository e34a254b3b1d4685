package dummydb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core/token"
)

type tokenRepository struct {
	db *DB
}

var _ token.Repository = (*tokenRepository)(nil) // interface compliance check

func NewTokenRepository(db *DB) *tokenRepository {
	return &tokenRepository{db: db}
}

func (repo tokenRepository) UpsertToken(_ context.Context, tok token.Token) (token.Token, error) {
	repo.db.token.Lock()
	defer repo.db.token.Unlock()

	if existing, ok := repo.db.token.table[tok.UserID]; ok {
		tok.CreatedAt = existing.CreatedAt
		tok.LastSyncedAt = existing.LastSyncedAt
	}
	cp := tok
	repo.db.token.table[tok.UserID] = &cp
	return tok, nil
}

func (repo tokenRepository) GetToken(_ context.Context, userID string) (token.Token, error) {
	repo.db.token.RLock()
	defer repo.db.token.RUnlock()

	if tok, ok := repo.db.token.table[userID]; ok {
		return *tok, nil
	}
	return token.Token{}, token.ErrNotFound
}

func (repo tokenRepository) TouchLastSynced(_ context.Context, userID string, at time.Time) error {
	repo.db.token.Lock()
	defer repo.db.token.Unlock()

	tok, ok := repo.db.token.table[userID]
	if !ok {
		return token.ErrNotFound
	}
	tok.LastSyncedAt = null.TimeFrom(at.UTC())
	tok.UpdatedAt = at.UTC()
	return nil
}
