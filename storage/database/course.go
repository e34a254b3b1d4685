package database

import (
	"context"
	"time"

	"github.com/pkg/errors"

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

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo courseRepository) UpsertCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	query := `
		INSERT INTO courses (user_id, remote_id, name, course_code, term_start, term_end, workflow_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, remote_id) DO UPDATE SET
			name = EXCLUDED.name,
			course_code = EXCLUDED.course_code,
			term_start = EXCLUDED.term_start,
			term_end = EXCLUDED.term_end,
			workflow_state = EXCLUDED.workflow_state,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, query,
		crs.UserID, crs.RemoteID, crs.Name, crs.CourseCode,
		crs.TermStart, crs.TermEnd, crs.WorkflowState, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "upserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, userID, remoteID string) (course.Course, error) {
	var crs course.Course
	query := `SELECT * FROM courses WHERE user_id = $1 AND remote_id = $2`
	if err := repo.db.GetContext(ctx, &crs, query, userID, remoteID); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryUserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	query := `SELECT * FROM courses WHERE user_id = $1 ORDER BY name, remote_id`
	if err := repo.db.SelectContext(ctx, &courses, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourseField(ctx context.Context, userID, remoteID, field, value string, exec ...core.DBExecutor) error {
	var column string
	switch field {
	case course.FieldName:
		column = "name"
	case course.FieldCourseCode:
		column = "course_code"
	default:
		return errors.Errorf("unknown course field %q", field)
	}

	query := `UPDATE courses SET ` + column + ` = $1, updated_at = $2 WHERE user_id = $3 AND remote_id = $4`
	res, err := repo.getExec(exec).ExecContext(ctx, query, value, time.Now().UTC(), userID, remoteID)
	if err != nil {
		return errors.Wrap(err, "updating course field")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, userID, remoteID string, exec ...core.DBExecutor) error {
	query := `DELETE FROM courses WHERE user_id = $1 AND remote_id = $2`
	res, err := repo.getExec(exec).ExecContext(ctx, query, userID, remoteID)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) CountUserCourses(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM courses WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return count, nil
}
