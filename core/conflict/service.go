package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/course"
)

type (
	// BatchResult reports the outcome for one id of a batch operation; batches
	// are best-effort and never mask partial failures behind an aggregate flag.
	BatchResult struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}

	ServiceInterface interface {
		QueryUnresolved(ctx context.Context, userID string) ([]Conflict, error)
		CountUnresolved(ctx context.Context, userID string) (int, error)
		Record(ctx context.Context, conflicts []Conflict) (int, error)
		Resolve(ctx context.Context, conflictID, actingUser string) (Conflict, error)
		Ignore(ctx context.Context, conflictID, actingUser string) (Conflict, error)
		ResolveBatch(ctx context.Context, conflictIDs []string, actingUser string) []BatchResult
		IgnoreBatch(ctx context.Context, conflictIDs []string, actingUser string) []BatchResult
	}

	Service struct {
		db          core.DB
		repo        Repository
		courses     course.Repository
		assignments assignment.Repository
		log         core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, courses course.Repository, assignments assignment.Repository, log core.Logger) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		courses:     courses,
		assignments: assignments,
		log:         log,
	}
}

func (svc *Service) QueryUnresolved(ctx context.Context, userID string) ([]Conflict, error) {
	return svc.repo.QueryUserConflicts(ctx, userID, StatusUnresolved)
}

func (svc *Service) CountUnresolved(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUserConflicts(ctx, userID, StatusUnresolved)
}

// Record persists freshly detected conflicts. Per-item failures are logged and
// skipped; the count of stored conflicts is returned.
func (svc *Service) Record(ctx context.Context, conflicts []Conflict) (int, error) {
	var stored int
	for _, cfl := range conflicts {
		if _, err := svc.repo.CreateConflict(ctx, cfl); err != nil {
			svc.log.Warn("recording conflict", err, map[string]interface{}{"key": cfl.Key()})
			continue
		}
		stored++
	}
	return stored, nil
}

// getOwnedUnresolved loads the conflict and enforces ownership and the
// unresolved precondition. Any miss is ErrNotFound: callers cannot distinguish
// "absent", "someone else's" and "already closed", on purpose.
func (svc *Service) getOwnedUnresolved(ctx context.Context, conflictID, actingUser string) (Conflict, error) {
	cfl, err := svc.repo.GetConflictByID(ctx, conflictID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Conflict{}, ErrNotFound
		}
		return Conflict{}, errors.Wrap(err, "getting conflict")
	}
	if cfl.UserID != actingUser || cfl.Status != StatusUnresolved {
		return Conflict{}, ErrNotFound
	}
	return cfl, nil
}

// Resolve overwrites the cache with the live value (or deletes the cached row
// for upstream deletions) and closes the conflict. The cache mutation and the
// status transition commit together: if the mutation fails the conflict stays
// unresolved and the failure surfaces as a PersistenceError, not a NotFound.
func (svc *Service) Resolve(ctx context.Context, conflictID, actingUser string) (Conflict, error) {
	cfl, err := svc.getOwnedUnresolved(ctx, conflictID, actingUser)
	if err != nil {
		return Conflict{}, err
	}
	// an unclassifiable conflict means corrupted data; do not try to recover
	kind, err := classify(cfl)
	if err != nil {
		return Conflict{}, core.NewShutdownError(fmt.Sprintf("%v: %q", err, cfl.ItemType))
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Conflict{}, core.NewPersistenceError(err, "beginning resolution transaction")
	}
	defer tx.Rollback()

	if err := svc.applyResolution(ctx, cfl, kind, tx); err != nil {
		return Conflict{}, err
	}

	now := time.Now().UTC()
	if err := svc.repo.CloseConflict(ctx, cfl.ID, StatusResolved, actingUser, now, tx); err != nil {
		return Conflict{}, core.NewPersistenceError(err, "marking conflict resolved")
	}
	if err := tx.Commit(); err != nil {
		return Conflict{}, core.NewPersistenceError(err, "committing resolution")
	}

	cfl.Status = StatusResolved
	cfl.ResolvedAt = null.TimeFrom(now)
	cfl.ResolvedBy = null.StringFrom(actingUser)
	return cfl, nil
}

func (svc *Service) applyResolution(ctx context.Context, cfl Conflict, kind resolutionKind, tx core.DBTransactor) error {
	switch kind {
	case assignmentExistenceDeleted:
		if err := svc.assignments.DeleteAssignment(ctx, cfl.UserID, cfl.ItemID, tx); err != nil && errors.Cause(err) != assignment.ErrNotFound {
			return core.NewPersistenceError(err, "deleting cached assignment")
		}
	case assignmentExistenceExists:
		// nothing to materialize here; the next full sync inserts the row
		svc.log.Info("assignment reappeared upstream; deferring to next sync", map[string]interface{}{"item_id": cfl.ItemID})
	case assignmentFieldUpdate, gradeFieldUpdate:
		if err := svc.assignments.UpdateAssignmentField(ctx, cfl.UserID, cfl.ItemID, cfl.Field, cfl.LiveValue, tx); err != nil {
			return core.NewPersistenceError(err, "updating cached assignment field")
		}
	case courseExistenceDeleted:
		if err := svc.courses.DeleteCourse(ctx, cfl.UserID, cfl.ItemID, tx); err != nil && errors.Cause(err) != course.ErrNotFound {
			return core.NewPersistenceError(err, "deleting cached course")
		}
	case courseExistenceExists:
		svc.log.Info("course reappeared upstream; deferring to next sync", map[string]interface{}{"item_id": cfl.ItemID})
	case courseFieldUpdate:
		if err := svc.courses.UpdateCourseField(ctx, cfl.UserID, cfl.ItemID, cfl.Field, cfl.LiveValue, tx); err != nil {
			return core.NewPersistenceError(err, "updating cached course field")
		}
	}
	return nil
}

// Ignore keeps the cached value exactly as-is and closes the conflict.
func (svc *Service) Ignore(ctx context.Context, conflictID, actingUser string) (Conflict, error) {
	cfl, err := svc.getOwnedUnresolved(ctx, conflictID, actingUser)
	if err != nil {
		return Conflict{}, err
	}

	now := time.Now().UTC()
	if err := svc.repo.CloseConflict(ctx, cfl.ID, StatusIgnored, actingUser, now); err != nil {
		return Conflict{}, core.NewPersistenceError(err, "marking conflict ignored")
	}

	cfl.Status = StatusIgnored
	cfl.ResolvedAt = null.TimeFrom(now)
	cfl.ResolvedBy = null.StringFrom(actingUser)
	return cfl, nil
}

func (svc *Service) ResolveBatch(ctx context.Context, conflictIDs []string, actingUser string) []BatchResult {
	return svc.batch(ctx, conflictIDs, actingUser, svc.Resolve)
}

func (svc *Service) IgnoreBatch(ctx context.Context, conflictIDs []string, actingUser string) []BatchResult {
	return svc.batch(ctx, conflictIDs, actingUser, svc.Ignore)
}

// batch applies op per id, best-effort: one failing id never aborts the rest.
func (svc *Service) batch(
	ctx context.Context,
	conflictIDs []string,
	actingUser string,
	op func(context.Context, string, string) (Conflict, error),
) []BatchResult {
	results := make([]BatchResult, 0, len(conflictIDs))
	for _, id := range conflictIDs {
		if _, err := op(ctx, id, actingUser); err != nil {
			svc.log.Warn("batch conflict operation", err, map[string]interface{}{"conflict_id": id})
			results = append(results, BatchResult{ID: id, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{ID: id, Success: true})
	}
	return results
}
