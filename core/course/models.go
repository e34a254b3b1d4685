package course

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrMappingNotFound = errors.New("course name mapping not found")
)

// Cache column names that the reconciler may target.
const (
	FieldName       = "name"
	FieldCourseCode = "course_code"
)

type (
	// Course is the locally cached mirror of a remote course, keyed by
	// (UserID, RemoteID). It is created and updated by sync only.
	Course struct {
		UserID        string    `json:"-" db:"user_id"`
		RemoteID      string    `json:"id" db:"remote_id"`
		Name          string    `json:"name" db:"name"`
		CourseCode    string    `json:"course_code" db:"course_code"`
		TermStart     null.Time `json:"term_start" db:"term_start"`
		TermEnd       null.Time `json:"term_end" db:"term_end"`
		WorkflowState string    `json:"workflow_state" db:"workflow_state"`
		CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
	}
)

// SetField assigns a reconcilable field from its string representation.
func (c *Course) SetField(field, value string) error {
	switch field {
	case FieldName:
		c.Name = value
	case FieldCourseCode:
		c.CourseCode = value
	default:
		return errors.New("unknown course field " + field)
	}
	return nil
}

type (
	// NameMapping is a per-(user, course) display-name override.
	NameMapping struct {
		UserID    string    `json:"-" db:"user_id"`
		CourseID  string    `json:"course_id" db:"course_id"`
		Name      string    `json:"name" db:"name"`
		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
	}

	Repository interface {
		// UpsertCourse inserts or updates by (user_id, remote_id); it must be
		// idempotent so concurrent sync runs commute.
		UpsertCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, userID, remoteID string) (Course, error)
		QueryUserCourses(ctx context.Context, userID string) ([]Course, error)
		// UpdateCourseField sets a single reconcilable column from its string
		// representation and stamps updated_at. The exec override lets the
		// reconciler run it inside its resolution transaction.
		UpdateCourseField(ctx context.Context, userID, remoteID, field, value string, exec ...core.DBExecutor) error
		DeleteCourse(ctx context.Context, userID, remoteID string, exec ...core.DBExecutor) error
		CountUserCourses(ctx context.Context, userID string) (int, error)
	}

	MappingRepository interface {
		// UpsertMapping inserts or updates by (user_id, course_id).
		UpsertMapping(ctx context.Context, m NameMapping) (NameMapping, error)
		DeleteMapping(ctx context.Context, userID, courseID string) error
		QueryUserMappings(ctx context.Context, userID string) ([]NameMapping, error)
	}
)
