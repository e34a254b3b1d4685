package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

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

func (repo conflictRepository) CreateConflict(_ context.Context, cfl conflict.Conflict) (conflict.Conflict, error) {
	repo.db.conflict.Lock()
	defer repo.db.conflict.Unlock()

	// one unresolved conflict per (item_type, item_id, field) slot
	for _, existing := range repo.db.conflict.table {
		if existing.UserID == cfl.UserID && existing.Status == conflict.StatusUnresolved && existing.Key() == cfl.Key() {
			return cfl, nil
		}
	}
	cp := cfl
	repo.db.conflict.table[cfl.ID] = &cp
	return cfl, nil
}

func (repo conflictRepository) GetConflictByID(_ context.Context, id string) (conflict.Conflict, error) {
	repo.db.conflict.RLock()
	defer repo.db.conflict.RUnlock()

	if cfl, ok := repo.db.conflict.table[id]; ok {
		return *cfl, nil
	}
	return conflict.Conflict{}, conflict.ErrNotFound
}

func (repo conflictRepository) QueryUserConflicts(_ context.Context, userID, status string) ([]conflict.Conflict, error) {
	repo.db.conflict.RLock()
	defer repo.db.conflict.RUnlock()

	conflicts := make([]conflict.Conflict, 0)
	for _, cfl := range repo.db.conflict.table {
		if cfl.UserID == userID && (status == "" || cfl.Status == status) {
			conflicts = append(conflicts, *cfl)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if !conflicts[i].DetectedAt.Equal(conflicts[j].DetectedAt) {
			return conflicts[i].DetectedAt.After(conflicts[j].DetectedAt)
		}
		return conflicts[i].ID < conflicts[j].ID
	})
	return conflicts, nil
}

func (repo conflictRepository) CountUserConflicts(_ context.Context, userID, status string) (int, error) {
	repo.db.conflict.RLock()
	defer repo.db.conflict.RUnlock()

	var count int
	for _, cfl := range repo.db.conflict.table {
		if cfl.UserID == userID && (status == "" || cfl.Status == status) {
			count++
		}
	}
	return count, nil
}

func (repo conflictRepository) CloseConflict(_ context.Context, id, status, resolvedBy string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.conflict.Lock()
	defer repo.db.conflict.Unlock()

	cfl, ok := repo.db.conflict.table[id]
	if !ok || cfl.Status != conflict.StatusUnresolved {
		return conflict.ErrNotFound
	}
	cfl.Status = status
	cfl.ResolvedAt = null.TimeFrom(at.UTC())
	cfl.ResolvedBy = null.StringFrom(resolvedBy)
	return nil
}
