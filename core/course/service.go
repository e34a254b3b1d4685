package course

import (
	"context"
	"time"

	"github.com/trezcool/classmirror/core"
)

type (
	// View is a cached course with its display name resolved through the
	// mapping fallback chain.
	View struct {
		Course
		DisplayName string `json:"display_name"`
	}

	ServiceInterface interface {
		QueryAll(ctx context.Context, userID string) ([]View, error)
		Get(ctx context.Context, userID, remoteID string) (Course, error)
		NameResolver(ctx context.Context, userID string) (*NameResolver, error)
		SetName(ctx context.Context, userID, courseID, name string) (NameMapping, error)
		RemoveName(ctx context.Context, userID, courseID string) error
	}

	Service struct {
		repo     Repository
		mappings MappingRepository
		log      core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mappings MappingRepository, log core.Logger) *Service {
	return &Service{repo: repo, mappings: mappings, log: log}
}

func (svc *Service) QueryAll(ctx context.Context, userID string) ([]View, error) {
	courses, err := svc.repo.QueryUserCourses(ctx, userID)
	if err != nil {
		return nil, err
	}
	resolver, err := svc.NameResolver(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(courses))
	for _, crs := range courses {
		name := resolver.Resolve(crs.RemoteID, crs.Name)
		if name == synthesizeName(crs.RemoteID) && crs.CourseCode != "" {
			// cached name was an unknown sentinel; the course code is a
			// better fallback than a synthesized id
			name = resolver.Resolve(crs.RemoteID, crs.CourseCode)
		}
		views = append(views, View{Course: crs, DisplayName: name})
	}
	return views, nil
}

func (svc *Service) Get(ctx context.Context, userID, remoteID string) (Course, error) {
	return svc.repo.GetCourse(ctx, userID, remoteID)
}

// NameResolver builds a per-request resolver from the user's mapping set.
func (svc *Service) NameResolver(ctx context.Context, userID string) (*NameResolver, error) {
	mm, err := svc.mappings.QueryUserMappings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewNameResolver(mm), nil
}

func (svc *Service) SetName(ctx context.Context, userID, courseID, name string) (NameMapping, error) {
	now := time.Now().UTC()
	return svc.mappings.UpsertMapping(ctx, NameMapping{
		UserID:    userID,
		CourseID:  courseID,
		Name:      core.CleanString(name),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) RemoveName(ctx context.Context, userID, courseID string) error {
	return svc.mappings.DeleteMapping(ctx, userID, courseID)
}
