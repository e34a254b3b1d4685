package database

import (
	"context"
	"database/sql/driver"
	"strconv"
	"time"

	"github.com/pkg/errors"

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

func (repo assignmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo assignmentRepository) UpsertAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	query := `
		INSERT INTO assignments (user_id, remote_id, course_id, course_name, name, due_at,
			points_possible, score, submitted_at, submission_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, remote_id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			course_name = EXCLUDED.course_name,
			name = EXCLUDED.name,
			due_at = EXCLUDED.due_at,
			points_possible = EXCLUDED.points_possible,
			score = EXCLUDED.score,
			submitted_at = EXCLUDED.submitted_at,
			submission_state = EXCLUDED.submission_state,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, query,
		asg.UserID, asg.RemoteID, asg.CourseID, asg.CourseName, asg.Name, asg.DueAt,
		asg.PointsPossible, asg.Score, asg.SubmittedAt, asg.SubmissionState,
		asg.CreatedAt.UTC(), asg.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "upserting assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, userID, remoteID string) (assignment.Assignment, error) {
	var asg assignment.Assignment
	query := `SELECT * FROM assignments WHERE user_id = $1 AND remote_id = $2`
	if err := repo.db.GetContext(ctx, &asg, query, userID, remoteID); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) QueryUserAssignments(ctx context.Context, userID string) ([]assignment.Assignment, error) {
	asgs := make([]assignment.Assignment, 0)
	query := `SELECT * FROM assignments WHERE user_id = $1 ORDER BY due_at NULLS LAST, remote_id`
	if err := repo.db.SelectContext(ctx, &asgs, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return asgs, nil
}

func (repo assignmentRepository) QueryCourseAssignments(ctx context.Context, userID, courseID string) ([]assignment.Assignment, error) {
	asgs := make([]assignment.Assignment, 0)
	query := `SELECT * FROM assignments WHERE user_id = $1 AND course_id = $2 ORDER BY due_at NULLS LAST, remote_id`
	if err := repo.db.SelectContext(ctx, &asgs, query, userID, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course assignments")
	}
	return asgs, nil
}

// fieldColumn maps a reconcilable field to its column and parses the string
// value into a driver-compatible one.
func fieldColumn(field, value string) (string, driver.Value, error) {
	switch field {
	case assignment.FieldName:
		return "name", value, nil
	case assignment.FieldDueAt:
		if value == "" {
			return "due_at", nil, nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return "", nil, errors.Wrapf(err, "parsing due_at %q", value)
		}
		return "due_at", t.UTC(), nil
	case assignment.FieldPointsPossible:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", nil, errors.Wrapf(err, "parsing points_possible %q", value)
		}
		return "points_possible", f, nil
	case assignment.FieldScore:
		if value == "" {
			return "score", nil, nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", nil, errors.Wrapf(err, "parsing score %q", value)
		}
		return "score", f, nil
	}
	return "", nil, errors.Errorf("unknown assignment field %q", field)
}

func (repo assignmentRepository) UpdateAssignmentField(ctx context.Context, userID, remoteID, field, value string, exec ...core.DBExecutor) error {
	column, val, err := fieldColumn(field, value)
	if err != nil {
		return err
	}

	query := `UPDATE assignments SET ` + column + ` = $1, updated_at = $2 WHERE user_id = $3 AND remote_id = $4`
	res, err := repo.getExec(exec).ExecContext(ctx, query, val, time.Now().UTC(), userID, remoteID)
	if err != nil {
		return errors.Wrap(err, "updating assignment field")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo assignmentRepository) UpdateCourseNames(ctx context.Context, userID, courseID, name string) (int, error) {
	query := `UPDATE assignments SET course_name = $1, updated_at = $2
		WHERE user_id = $3 AND course_id = $4 AND course_name <> $1`
	res, err := repo.db.ExecContext(ctx, query, name, time.Now().UTC(), userID, courseID)
	if err != nil {
		return 0, errors.Wrap(err, "repairing course names")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting repaired rows")
	}
	return int(n), nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, userID, remoteID string, exec ...core.DBExecutor) error {
	query := `DELETE FROM assignments WHERE user_id = $1 AND remote_id = $2`
	res, err := repo.getExec(exec).ExecContext(ctx, query, userID, remoteID)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo assignmentRepository) CountUserAssignments(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM assignments WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, errors.Wrap(err, "counting assignments")
	}
	return count, nil
}
