package database

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/conflict"
)

type conflictRepository struct {
	db *DB
}

var _ conflict.Repository = (*conflictRepository)(nil) // interface compliance check

func NewConflictRepository(db *DB) *conflictRepository {
	return &conflictRepository{db: db}
}

func (repo conflictRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo conflictRepository) CreateConflict(ctx context.Context, cfl conflict.Conflict) (conflict.Conflict, error) {
	query := `
		INSERT INTO sync_conflicts (id, user_id, item_type, item_id, field, cached_value, live_value, status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, item_type, item_id, field) WHERE status = 'unresolved' DO NOTHING`
	_, err := repo.db.ExecContext(ctx, query,
		cfl.ID, cfl.UserID, cfl.ItemType, cfl.ItemID, cfl.Field,
		cfl.CachedValue, cfl.LiveValue, cfl.Status, cfl.DetectedAt.UTC(),
	)
	if err != nil {
		return conflict.Conflict{}, errors.Wrap(err, "inserting conflict")
	}
	return cfl, nil
}

func (repo conflictRepository) GetConflictByID(ctx context.Context, id string) (conflict.Conflict, error) {
	var cfl conflict.Conflict
	query := `SELECT * FROM sync_conflicts WHERE id = $1`
	if err := repo.db.GetContext(ctx, &cfl, query, id); err != nil {
		return conflict.Conflict{}, trapNoRowsErr(err, conflict.ErrNotFound, "getting conflict")
	}
	return cfl, nil
}

func (repo conflictRepository) QueryUserConflicts(ctx context.Context, userID, status string) ([]conflict.Conflict, error) {
	conflicts := make([]conflict.Conflict, 0)
	query := `SELECT * FROM sync_conflicts WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY detected_at DESC, id`
	if err := repo.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying conflicts")
	}
	return conflicts, nil
}

func (repo conflictRepository) CountUserConflicts(ctx context.Context, userID, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sync_conflicts WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting conflicts")
	}
	return count, nil
}

func (repo conflictRepository) CloseConflict(ctx context.Context, id, status, resolvedBy string, at time.Time, exec ...core.DBExecutor) error {
	query := `UPDATE sync_conflicts SET status = $1, resolved_at = $2, resolved_by = $3
		WHERE id = $4 AND status = 'unresolved'`
	res, err := repo.getExec(exec).ExecContext(ctx, query, status, at.UTC(), resolvedBy, id)
	if err != nil {
		return errors.Wrap(err, "closing conflict")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return conflict.ErrNotFound
	}
	return nil
}
