package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/classmirror/core/course"
)

type mappingRepository struct {
	db *DB
}

var _ course.MappingRepository = (*mappingRepository)(nil) // interface compliance check

func NewMappingRepository(db *DB) *mappingRepository {
	return &mappingRepository{db: db}
}

func (repo mappingRepository) UpsertMapping(_ context.Context, m course.NameMapping) (course.NameMapping, error) {
	repo.db.mapping.Lock()
	defer repo.db.mapping.Unlock()

	k := key(m.UserID, m.CourseID)
	if existing, ok := repo.db.mapping.table[k]; ok {
		m.CreatedAt = existing.CreatedAt
	}
	cp := m
	repo.db.mapping.table[k] = &cp
	return m, nil
}

func (repo mappingRepository) DeleteMapping(_ context.Context, userID, courseID string) error {
	repo.db.mapping.Lock()
	defer repo.db.mapping.Unlock()

	k := key(userID, courseID)
	if _, ok := repo.db.mapping.table[k]; !ok {
		return course.ErrMappingNotFound
	}
	delete(repo.db.mapping.table, k)
	return nil
}

func (repo mappingRepository) QueryUserMappings(_ context.Context, userID string) ([]course.NameMapping, error) {
	repo.db.mapping.RLock()
	defer repo.db.mapping.RUnlock()

	mappings := make([]course.NameMapping, 0)
	for _, m := range repo.db.mapping.table {
		if m.UserID == userID {
			mappings = append(mappings, *m)
		}
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].CourseID < mappings[j].CourseID })
	return mappings, nil
}
