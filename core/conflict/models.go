package conflict

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
)

var (
	// errors
	ErrNotFound        = errors.New("conflict not found")
	ErrUnknownItemType = errors.New("unknown item type")
)

// Item types a conflict can reference. Grade conflicts target assignment rows
// since that is where submission scores live.
const (
	ItemAssignment = "assignment"
	ItemCourse     = "course"
	ItemGrade      = "grade"
)

// FieldExistence is the synthetic field tracking whether the item itself still
// exists upstream; its values are ExistenceExists / ExistenceDeleted.
const (
	FieldExistence = "existence"

	ExistenceExists  = "exists"
	ExistenceDeleted = "deleted"
)

// Lifecycle states. A conflict leaves StatusUnresolved only via Resolve or
// Ignore, and only by the owning user.
const (
	StatusUnresolved = "unresolved"
	StatusResolved   = "resolved"
	StatusIgnored    = "ignored"
)

type (
	// Conflict records one detected divergence between the cached and live
	// value of a single field on a single item.
	Conflict struct {
		ID          string      `json:"id" db:"id"`
		UserID      string      `json:"-" db:"user_id"`
		ItemType    string      `json:"item_type" db:"item_type"`
		ItemID      string      `json:"item_id" db:"item_id"`
		Field       string      `json:"field" db:"field"`
		CachedValue string      `json:"cached_value" db:"cached_value"`
		LiveValue   string      `json:"live_value" db:"live_value"`
		Status      string      `json:"status" db:"status"`
		DetectedAt  time.Time   `json:"detected_at" db:"detected_at"` // UTC
		ResolvedAt  null.Time   `json:"resolved_at" db:"resolved_at"` // UTC
		ResolvedBy  null.String `json:"resolved_by" db:"resolved_by"`
	}

	Repository interface {
		CreateConflict(ctx context.Context, cfl Conflict) (Conflict, error)
		GetConflictByID(ctx context.Context, id string) (Conflict, error)
		// QueryUserConflicts filters by status when status != "".
		QueryUserConflicts(ctx context.Context, userID, status string) ([]Conflict, error)
		CountUserConflicts(ctx context.Context, userID, status string) (int, error)
		// CloseConflict transitions an unresolved conflict to a terminal
		// status and stamps resolved_at/resolved_by.
		CloseConflict(ctx context.Context, id, status, resolvedBy string, at time.Time, exec ...core.DBExecutor) error
	}
)

// Key identifies the (item_type, item_id, field) slot a conflict occupies;
// at most one unresolved conflict may exist per slot.
func (c Conflict) Key() string {
	return c.ItemType + "|" + c.ItemID + "|" + c.Field
}

// resolutionKind is the closed set of actions Resolve can take. classify is
// exhaustive over it so new item types cannot silently fall through.
type resolutionKind int

const (
	assignmentExistenceDeleted resolutionKind = iota
	assignmentExistenceExists
	assignmentFieldUpdate
	courseExistenceDeleted
	courseExistenceExists
	courseFieldUpdate
	gradeFieldUpdate
)

func classify(c Conflict) (resolutionKind, error) {
	switch c.ItemType {
	case ItemAssignment:
		if c.Field == FieldExistence {
			if c.LiveValue == ExistenceDeleted {
				return assignmentExistenceDeleted, nil
			}
			return assignmentExistenceExists, nil
		}
		return assignmentFieldUpdate, nil
	case ItemCourse:
		if c.Field == FieldExistence {
			if c.LiveValue == ExistenceDeleted {
				return courseExistenceDeleted, nil
			}
			return courseExistenceExists, nil
		}
		return courseFieldUpdate, nil
	case ItemGrade:
		// grades always update a specific field on the assignment cache
		return gradeFieldUpdate, nil
	}
	return 0, ErrUnknownItemType
}
