package assignment

import (
	"context"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/course"
)

type (
	ServiceInterface interface {
		QueryAll(ctx context.Context, userID string) ([]Assignment, error)
		QueryForCourse(ctx context.Context, userID, courseID string) ([]Assignment, error)
		QueryGrades(ctx context.Context, userID string) ([]Assignment, error)
		Summaries(ctx context.Context, userID string, resolver *course.NameResolver) ([]GradeSummary, error)
		RepairCourseNames(ctx context.Context, userID string, courses []course.Course, resolver *course.NameResolver) (int, error)
	}

	Service struct {
		repo Repository
		log  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, log core.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (svc *Service) QueryAll(ctx context.Context, userID string) ([]Assignment, error) {
	return svc.repo.QueryUserAssignments(ctx, userID)
}

func (svc *Service) QueryForCourse(ctx context.Context, userID, courseID string) ([]Assignment, error) {
	return svc.repo.QueryCourseAssignments(ctx, userID, courseID)
}

// QueryGrades returns only assignments whose submission carries a score.
func (svc *Service) QueryGrades(ctx context.Context, userID string) ([]Assignment, error) {
	asgs, err := svc.repo.QueryUserAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	grades := make([]Assignment, 0, len(asgs))
	for _, a := range asgs {
		if a.Graded() {
			grades = append(grades, a)
		}
	}
	return grades, nil
}

func (svc *Service) Summaries(ctx context.Context, userID string, resolver *course.NameResolver) ([]GradeSummary, error) {
	asgs, err := svc.repo.QueryUserAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := Summarize(asgs)
	for i, s := range summaries {
		summaries[i].CourseName = resolver.Resolve(s.CourseID, s.CourseName)
	}
	return summaries, nil
}

// RepairCourseNames rewrites stale denormalized course names on cached
// assignments after the mapping set or the course cache changed. Per-course
// failures are logged and skipped.
func (svc *Service) RepairCourseNames(ctx context.Context, userID string, courses []course.Course, resolver *course.NameResolver) (int, error) {
	var repaired int
	for _, crs := range courses {
		name := resolver.Resolve(crs.RemoteID, crs.Name)
		n, err := svc.repo.UpdateCourseNames(ctx, userID, crs.RemoteID, name)
		if err != nil {
			svc.log.Warn("repairing course names", err, map[string]interface{}{"course_id": crs.RemoteID})
			continue
		}
		repaired += n
	}
	return repaired, nil
}
