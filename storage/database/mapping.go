package database

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/classmirror/core/course"
)

type mappingRepository struct {
	db *DB
}

var _ course.MappingRepository = (*mappingRepository)(nil) // interface compliance check

func NewMappingRepository(db *DB) *mappingRepository {
	return &mappingRepository{db: db}
}

func (repo mappingRepository) UpsertMapping(ctx context.Context, m course.NameMapping) (course.NameMapping, error) {
	query := `
		INSERT INTO course_name_mappings (user_id, course_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, course_id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, query,
		m.UserID, m.CourseID, m.Name, m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.NameMapping{}, errors.Wrap(err, "upserting name mapping")
	}
	return m, nil
}

func (repo mappingRepository) DeleteMapping(ctx context.Context, userID, courseID string) error {
	query := `DELETE FROM course_name_mappings WHERE user_id = $1 AND course_id = $2`
	res, err := repo.db.ExecContext(ctx, query, userID, courseID)
	if err != nil {
		return errors.Wrap(err, "deleting name mapping")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrMappingNotFound
	}
	return nil
}

func (repo mappingRepository) QueryUserMappings(ctx context.Context, userID string) ([]course.NameMapping, error) {
	mappings := make([]course.NameMapping, 0)
	query := `SELECT * FROM course_name_mappings WHERE user_id = $1 ORDER BY course_id`
	if err := repo.db.SelectContext(ctx, &mappings, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying name mappings")
	}
	return mappings, nil
}
