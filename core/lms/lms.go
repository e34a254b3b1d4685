// Package lms defines the remote learning-management-system surface the sync
// core consumes: plain snapshot types and the Client contract implemented by
// services/canvas.
package lms

import (
	"context"

	"github.com/volatiletech/null/v8"
)

// Submission workflow states as reported upstream.
const (
	SubmissionGraded      = "graded"
	SubmissionSubmitted   = "submitted"
	SubmissionUnsubmitted = "unsubmitted"
)

type (
	Course struct {
		ID            string
		Name          string
		CourseCode    string
		TermStart     null.Time
		TermEnd       null.Time
		WorkflowState string
	}

	Submission struct {
		Score         null.Float64
		SubmittedAt   null.Time
		WorkflowState string
	}

	Assignment struct {
		ID             string
		CourseID       string
		Name           string
		DueAt          null.Time
		PointsPossible float64
		Submission     *Submission
	}

	Client interface {
		// ValidateToken checks the token against the upstream API; it must
		// honor ctx deadlines and map failures to core.UpstreamError.
		ValidateToken(ctx context.Context, baseURL, token string) error
		ListCourses(ctx context.Context, baseURL, token string) ([]Course, error)
		// ListAssignments returns the course's assignments including the
		// requesting user's submission, when one exists.
		ListAssignments(ctx context.Context, baseURL, token, courseID string) ([]Assignment, error)
	}
)

// Graded reports whether the submission carries a meaningful score.
func (s *Submission) Graded() bool {
	return s != nil && s.WorkflowState == SubmissionGraded && s.Score.Valid
}
