package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) UpsertCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	k := key(crs.UserID, crs.RemoteID)
	if existing, ok := repo.db.course.table[k]; ok {
		crs.CreatedAt = existing.CreatedAt
	}
	cp := crs
	repo.db.course.table[k] = &cp
	return crs, nil
}

func (repo courseRepository) GetCourse(_ context.Context, userID, remoteID string) (course.Course, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	if crs, ok := repo.db.course.table[key(userID, remoteID)]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo courseRepository) QueryUserCourses(_ context.Context, userID string) ([]course.Course, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.course.table {
		if crs.UserID == userID {
			courses = append(courses, *crs)
		}
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].Name != courses[j].Name {
			return courses[i].Name < courses[j].Name
		}
		return courses[i].RemoteID < courses[j].RemoteID
	})
	return courses, nil
}

func (repo courseRepository) UpdateCourseField(_ context.Context, userID, remoteID, field, value string, _ ...core.DBExecutor) error {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	crs, ok := repo.db.course.table[key(userID, remoteID)]
	if !ok {
		return course.ErrNotFound
	}
	if err := crs.SetField(field, value); err != nil {
		return err
	}
	crs.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo courseRepository) DeleteCourse(_ context.Context, userID, remoteID string, _ ...core.DBExecutor) error {
	repo.db.course.Lock()
	defer repo.db.course.Unlock()

	k := key(userID, remoteID)
	if _, ok := repo.db.course.table[k]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.course.table, k)
	return nil
}

func (repo courseRepository) CountUserCourses(_ context.Context, userID string) (int, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	var count int
	for _, crs := range repo.db.course.table {
		if crs.UserID == userID {
			count++
		}
	}
	return count, nil
}
