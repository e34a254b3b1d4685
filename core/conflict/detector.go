package conflict

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/course"
	"github.com/trezcool/classmirror/core/lms"
)

// Detector diffs a remote snapshot against the current cache for one user.
// It is pure: it decides which rows to upsert and which divergences become
// conflict records, but never touches a store itself.
//
// Divergence rules: a tracked field conflicts only when the cache already held
// a meaningful value that the live data contradicts. Empty or zero cached
// fields refresh silently, as do all untracked fields and brand-new items.
// Items that vanished upstream produce an existence/deleted conflict and the
// cached row is left alone until the user resolves it.
type Detector struct {
	userID string
	now    time.Time
	open   map[string]struct{}
}

// NewDetector seeds the detector with the user's currently unresolved
// conflicts so no duplicate record is emitted for an occupied slot.
func NewDetector(userID string, open []Conflict, now time.Time) *Detector {
	set := make(map[string]struct{}, len(open))
	for _, cfl := range open {
		set[cfl.Key()] = struct{}{}
	}
	return &Detector{userID: userID, now: now.UTC(), open: set}
}

// conflict returns a new unresolved conflict for the slot, or nil if the slot
// already has one (pre-existing or emitted earlier in this run).
func (d *Detector) conflict(itemType, itemID, field, cachedVal, liveVal string) *Conflict {
	cfl := Conflict{
		ItemType:    itemType,
		ItemID:      itemID,
		Field:       field,
		CachedValue: cachedVal,
		LiveValue:   liveVal,
	}
	if _, taken := d.open[cfl.Key()]; taken {
		return nil
	}
	d.open[cfl.Key()] = struct{}{}

	cfl.ID = uuid.New().String()
	cfl.UserID = d.userID
	cfl.Status = StatusUnresolved
	cfl.DetectedAt = d.now
	return &cfl
}

// DetectCourses returns the course rows to upsert (live data, with conflicted
// fields pinned to their cached values) and the conflicts to record.
func (d *Detector) DetectCourses(cached []course.Course, live []lms.Course) ([]course.Course, []Conflict) {
	cachedByID := make(map[string]course.Course, len(cached))
	for _, crs := range cached {
		cachedByID[crs.RemoteID] = crs
	}

	var upserts []course.Course
	var conflicts []Conflict
	liveIDs := make(map[string]struct{}, len(live))

	for _, rc := range live {
		liveIDs[rc.ID] = struct{}{}
		row := d.courseFromRemote(rc)

		old, exists := cachedByID[rc.ID]
		if !exists {
			// new course: parameterless insert, no friction
			upserts = append(upserts, row)
			continue
		}

		if old.Name != "" && rc.Name != old.Name {
			if cfl := d.conflict(ItemCourse, rc.ID, course.FieldName, old.Name, rc.Name); cfl != nil {
				conflicts = append(conflicts, *cfl)
			}
			row.Name = old.Name
		}
		if old.CourseCode != "" && rc.CourseCode != old.CourseCode {
			if cfl := d.conflict(ItemCourse, rc.ID, course.FieldCourseCode, old.CourseCode, rc.CourseCode); cfl != nil {
				conflicts = append(conflicts, *cfl)
			}
			row.CourseCode = old.CourseCode
		}
		upserts = append(upserts, row)
	}

	// deleted upstream: record, do not touch the cached row
	for _, old := range cached {
		if _, stillLive := liveIDs[old.RemoteID]; stillLive {
			continue
		}
		if cfl := d.conflict(ItemCourse, old.RemoteID, FieldExistence, ExistenceExists, ExistenceDeleted); cfl != nil {
			conflicts = append(conflicts, *cfl)
		}
	}

	return upserts, conflicts
}

// DetectAssignments mirrors DetectCourses for assignment and grade fields.
// nameFor denormalizes the display name for new assignment rows.
func (d *Detector) DetectAssignments(
	cached []assignment.Assignment,
	live []lms.Assignment,
	nameFor func(courseID string) string,
) ([]assignment.Assignment, []Conflict) {
	cachedByID := make(map[string]assignment.Assignment, len(cached))
	for _, asg := range cached {
		cachedByID[asg.RemoteID] = asg
	}

	var upserts []assignment.Assignment
	var conflicts []Conflict
	liveIDs := make(map[string]struct{}, len(live))

	for _, ra := range live {
		liveIDs[ra.ID] = struct{}{}
		row := d.assignmentFromRemote(ra, nameFor(ra.CourseID))

		old, exists := cachedByID[ra.ID]
		if !exists {
			upserts = append(upserts, row)
			continue
		}

		if old.Name != "" && ra.Name != old.Name {
			if cfl := d.conflict(ItemAssignment, ra.ID, assignment.FieldName, old.Name, ra.Name); cfl != nil {
				conflicts = append(conflicts, *cfl)
			}
			row.Name = old.Name
		}
		if old.DueAt.Valid && !timesEqual(old.DueAt, ra.DueAt) {
			if cfl := d.conflict(ItemAssignment, ra.ID, assignment.FieldDueAt, timeValue(old.DueAt), timeValue(ra.DueAt)); cfl != nil {
				conflicts = append(conflicts, *cfl)
			}
			row.DueAt = old.DueAt
		}
		if old.PointsPossible != 0 && ra.PointsPossible != old.PointsPossible {
			if cfl := d.conflict(ItemAssignment, ra.ID, assignment.FieldPointsPossible, floatValue(old.PointsPossible), floatValue(ra.PointsPossible)); cfl != nil {
				conflicts = append(conflicts, *cfl)
			}
			row.PointsPossible = old.PointsPossible
		}

		// grades live on assignment rows; a previously recorded score that
		// diverges (or vanishes) is a grade conflict
		if old.Score.Valid && !floatsEqual(old.Score, row.Score) {
			if cfl := d.conflict(ItemGrade, ra.ID, assignment.FieldScore, nullFloatValue(old.Score), nullFloatValue(row.Score)); cfl != nil {
				conflicts = append(conflicts, *cfl)
			}
			row.Score = old.Score
		}

		// keep the cached denormalized name; name repair owns it
		if old.CourseName != "" {
			row.CourseName = old.CourseName
		}
		upserts = append(upserts, row)
	}

	for _, old := range cached {
		if _, stillLive := liveIDs[old.RemoteID]; stillLive {
			continue
		}
		if cfl := d.conflict(ItemAssignment, old.RemoteID, FieldExistence, ExistenceExists, ExistenceDeleted); cfl != nil {
			conflicts = append(conflicts, *cfl)
		}
	}

	return upserts, conflicts
}

func (d *Detector) courseFromRemote(rc lms.Course) course.Course {
	return course.Course{
		UserID:        d.userID,
		RemoteID:      rc.ID,
		Name:          rc.Name,
		CourseCode:    rc.CourseCode,
		TermStart:     rc.TermStart,
		TermEnd:       rc.TermEnd,
		WorkflowState: rc.WorkflowState,
		CreatedAt:     d.now,
		UpdatedAt:     d.now,
	}
}

func (d *Detector) assignmentFromRemote(ra lms.Assignment, courseName string) assignment.Assignment {
	row := assignment.Assignment{
		UserID:          d.userID,
		RemoteID:        ra.ID,
		CourseID:        ra.CourseID,
		CourseName:      courseName,
		Name:            ra.Name,
		DueAt:           ra.DueAt,
		PointsPossible:  ra.PointsPossible,
		SubmissionState: lms.SubmissionUnsubmitted,
		CreatedAt:       d.now,
		UpdatedAt:       d.now,
	}
	if sub := ra.Submission; sub != nil {
		row.Score = sub.Score
		row.SubmittedAt = sub.SubmittedAt
		if sub.WorkflowState != "" {
			row.SubmissionState = sub.WorkflowState
		}
	}
	return row
}

func timesEqual(a, b null.Time) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Time.Equal(b.Time)
}

func floatsEqual(a, b null.Float64) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Float64 == b.Float64
}

func timeValue(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(time.RFC3339)
}

func floatValue(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nullFloatValue(f null.Float64) string {
	if !f.Valid {
		return ""
	}
	return floatValue(f.Float64)
}
