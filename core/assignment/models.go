package assignment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/lms"
)

var (
	// errors
	ErrNotFound = errors.New("assignment not found")
)

// Cache column names that the reconciler may target. Grade conflicts target
// FieldScore since grades live on assignment rows.
const (
	FieldName           = "name"
	FieldDueAt          = "due_at"
	FieldPointsPossible = "points_possible"
	FieldScore          = "score"
)

type (
	// Assignment is the locally cached mirror of a remote assignment plus the
	// owning user's submission metadata, keyed by (UserID, RemoteID).
	// CourseID is a soft reference: the course row may not exist yet.
	Assignment struct {
		UserID          string       `json:"-" db:"user_id"`
		RemoteID        string       `json:"id" db:"remote_id"`
		CourseID        string       `json:"course_id" db:"course_id"`
		CourseName      string       `json:"course_name" db:"course_name"` // denormalized at write time
		Name            string       `json:"name" db:"name"`
		DueAt           null.Time    `json:"due_at" db:"due_at"`
		PointsPossible  float64      `json:"points_possible" db:"points_possible"`
		Score           null.Float64 `json:"score" db:"score"`
		SubmittedAt     null.Time    `json:"submitted_at" db:"submitted_at"`
		SubmissionState string       `json:"submission_state" db:"submission_state"`
		CreatedAt       time.Time    `json:"created_at" db:"created_at"` // UTC
		UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"` // UTC
	}

	Repository interface {
		// UpsertAssignment inserts or updates by (user_id, remote_id); it must
		// be idempotent so concurrent sync runs commute.
		UpsertAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, userID, remoteID string) (Assignment, error)
		QueryUserAssignments(ctx context.Context, userID string) ([]Assignment, error)
		QueryCourseAssignments(ctx context.Context, userID, courseID string) ([]Assignment, error)
		// UpdateAssignmentField sets a single reconcilable column from its
		// string representation and stamps updated_at. The exec override lets
		// the reconciler run it inside its resolution transaction.
		UpdateAssignmentField(ctx context.Context, userID, remoteID, field, value string, exec ...core.DBExecutor) error
		// UpdateCourseNames rewrites the denormalized course name on all of a
		// course's cached assignments and returns the affected row count.
		UpdateCourseNames(ctx context.Context, userID, courseID, name string) (int, error)
		DeleteAssignment(ctx context.Context, userID, remoteID string, exec ...core.DBExecutor) error
		CountUserAssignments(ctx context.Context, userID string) (int, error)
	}
)

// SetField assigns a reconcilable field from its string representation; an
// empty value clears nullable fields.
func (a *Assignment) SetField(field, value string) error {
	switch field {
	case FieldName:
		a.Name = value
	case FieldDueAt:
		if value == "" {
			a.DueAt = null.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return errors.New("invalid due_at value " + value)
		}
		a.DueAt = null.TimeFrom(t.UTC())
	case FieldPointsPossible:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.New("invalid points_possible value " + value)
		}
		a.PointsPossible = f
	case FieldScore:
		if value == "" {
			a.Score = null.Float64{}
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.New("invalid score value " + value)
		}
		a.Score = null.Float64From(f)
	default:
		return errors.New("unknown assignment field " + field)
	}
	return nil
}

// Graded reports whether the cached submission state carries a usable score.
func (a Assignment) Graded() bool {
	return a.SubmissionState == lms.SubmissionGraded && a.Score.Valid
}

// Submitted reports whether the owning user has turned the assignment in.
func (a Assignment) Submitted() bool {
	return a.SubmittedAt.Valid || a.SubmissionState == lms.SubmissionSubmitted || a.SubmissionState == lms.SubmissionGraded
}

// Percentage returns score/points_possible as a 0-100 value; 0 when ungraded
// or when the assignment is worth no points.
func (a Assignment) Percentage() float64 {
	if !a.Graded() || a.PointsPossible <= 0 {
		return 0
	}
	return a.Score.Float64 / a.PointsPossible * 100
}
