package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) UpsertAssignment(_ context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	k := key(asg.UserID, asg.RemoteID)
	if existing, ok := repo.db.assignment.table[k]; ok {
		asg.CreatedAt = existing.CreatedAt
	}
	cp := asg
	repo.db.assignment.table[k] = &cp
	return asg, nil
}

func (repo assignmentRepository) GetAssignment(_ context.Context, userID, remoteID string) (assignment.Assignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	if asg, ok := repo.db.assignment.table[key(userID, remoteID)]; ok {
		return *asg, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func sortAssignments(asgs []assignment.Assignment) {
	sort.Slice(asgs, func(i, j int) bool {
		a, b := asgs[i], asgs[j]
		switch {
		case a.DueAt.Valid && !b.DueAt.Valid:
			return true
		case !a.DueAt.Valid && b.DueAt.Valid:
			return false
		case a.DueAt.Valid && !a.DueAt.Time.Equal(b.DueAt.Time):
			return a.DueAt.Time.Before(b.DueAt.Time)
		}
		return a.RemoteID < b.RemoteID
	})
}

func (repo assignmentRepository) QueryUserAssignments(_ context.Context, userID string) ([]assignment.Assignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	asgs := make([]assignment.Assignment, 0)
	for _, asg := range repo.db.assignment.table {
		if asg.UserID == userID {
			asgs = append(asgs, *asg)
		}
	}
	sortAssignments(asgs)
	return asgs, nil
}

func (repo assignmentRepository) QueryCourseAssignments(_ context.Context, userID, courseID string) ([]assignment.Assignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	asgs := make([]assignment.Assignment, 0)
	for _, asg := range repo.db.assignment.table {
		if asg.UserID == userID && asg.CourseID == courseID {
			asgs = append(asgs, *asg)
		}
	}
	sortAssignments(asgs)
	return asgs, nil
}

func (repo assignmentRepository) UpdateAssignmentField(_ context.Context, userID, remoteID, field, value string, _ ...core.DBExecutor) error {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	asg, ok := repo.db.assignment.table[key(userID, remoteID)]
	if !ok {
		return assignment.ErrNotFound
	}
	if err := asg.SetField(field, value); err != nil {
		return err
	}
	asg.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo assignmentRepository) UpdateCourseNames(_ context.Context, userID, courseID, name string) (int, error) {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	var count int
	for _, asg := range repo.db.assignment.table {
		if asg.UserID == userID && asg.CourseID == courseID && asg.CourseName != name {
			asg.CourseName = name
			asg.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

func (repo assignmentRepository) DeleteAssignment(_ context.Context, userID, remoteID string, _ ...core.DBExecutor) error {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	k := key(userID, remoteID)
	if _, ok := repo.db.assignment.table[k]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignment.table, k)
	return nil
}

func (repo assignmentRepository) CountUserAssignments(_ context.Context, userID string) (int, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	var count int
	for _, asg := range repo.db.assignment.table {
		if asg.UserID == userID {
			count++
		}
	}
	return count, nil
}
