package sync

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/conflict"
	"github.com/trezcool/classmirror/core/course"
	"github.com/trezcool/classmirror/core/lms"
	"github.com/trezcool/classmirror/core/token"
)

type (
	// Stats summarizes one sync run.
	Stats struct {
		Courses      int       `json:"courses"`
		Assignments  int       `json:"assignments"`
		Submissions  int       `json:"submissions"`
		NewConflicts int       `json:"new_conflicts"`
		LastSync     time.Time `json:"last_sync"`
		Errors       []string  `json:"errors"`
	}

	// Status is the cache summary served by /sync/status.
	Status struct {
		Courses             int       `json:"courses"`
		Assignments         int       `json:"assignments"`
		UnresolvedConflicts int       `json:"unresolved_conflicts"`
		LastSync            null.Time `json:"last_sync"`
		Stale               bool      `json:"stale"`
		NeedsToken          bool      `json:"needs_token"`
	}

	// Overview is the dashboard payload; its three collections are loaded
	// concurrently and the whole read fails if any of them does.
	Overview struct {
		Courses     []course.View           `json:"courses"`
		Assignments []assignment.Assignment `json:"assignments"`
		Grades      []assignment.Assignment `json:"grades"`
	}

	// Locker serializes sync runs per user; upserts stay commutative without
	// it, it only prevents two tabs from doing duplicate remote work.
	Locker interface {
		WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error
	}

	ServiceInterface interface {
		Run(ctx context.Context, userID, userEmail string) (Stats, error)
		Status(ctx context.Context, userID string) (Status, error)
		Overview(ctx context.Context, userID string) (Overview, error)
	}

	Service struct {
		client      lms.Client
		tokens      token.ServiceInterface
		locker      Locker
		courseRepo  course.Repository
		courseSvc   course.ServiceInterface
		asgRepo     assignment.Repository
		asgSvc      assignment.ServiceInterface
		conflictSvc conflict.ServiceInterface
		mailSvc     core.EmailService
		log         core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	client lms.Client,
	tokens token.ServiceInterface,
	locker Locker,
	courseRepo course.Repository,
	courseSvc course.ServiceInterface,
	asgRepo assignment.Repository,
	asgSvc assignment.ServiceInterface,
	conflictSvc conflict.ServiceInterface,
	mailSvc core.EmailService,
	log core.Logger,
) *Service {
	return &Service{
		client:      client,
		tokens:      tokens,
		locker:      locker,
		courseRepo:  courseRepo,
		courseSvc:   courseSvc,
		asgRepo:     asgRepo,
		asgSvc:      asgSvc,
		conflictSvc: conflictSvc,
		mailSvc:     mailSvc,
		log:         log,
	}
}

// Run pulls the user's remote snapshot, upserts non-conflicting data and
// records divergences as unresolved conflicts for explicit action. A failed
// per-course assignment fetch is logged into Stats.Errors and skipped;
// sibling courses still sync.
func (svc *Service) Run(ctx context.Context, userID, userEmail string) (Stats, error) {
	baseURL, rawToken, err := svc.tokens.Credentials(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	err = svc.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		var runErr error
		stats, runErr = svc.run(ctx, userID, baseURL, rawToken)
		return runErr
	})
	if err != nil {
		return Stats{}, err
	}

	if stats.NewConflicts > 0 && userEmail != "" {
		svc.notifyConflicts(userEmail, stats.NewConflicts)
	}
	return stats, nil
}

func (svc *Service) run(ctx context.Context, userID, baseURL, rawToken string) (Stats, error) {
	now := time.Now().UTC()
	stats := Stats{LastSync: now, Errors: []string{}}

	liveCourses, err := svc.client.ListCourses(ctx, baseURL, rawToken)
	if err != nil {
		return Stats{}, err
	}

	// per-course assignment fetches: log and continue so one bad course
	// cannot abort its siblings
	var liveAsgs []lms.Assignment
	fetched := make(map[string]struct{}, len(liveCourses))
	for _, crs := range liveCourses {
		asgs, err := svc.client.ListAssignments(ctx, baseURL, rawToken, crs.ID)
		if err != nil {
			svc.log.Warn("fetching course assignments", err, map[string]interface{}{"course_id": crs.ID})
			stats.Errors = append(stats.Errors, fmt.Sprintf("course %s: %v", crs.ID, err))
			continue
		}
		fetched[crs.ID] = struct{}{}
		liveAsgs = append(liveAsgs, asgs...)
	}

	cachedCourses, err := svc.courseRepo.QueryUserCourses(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying cached courses")
	}
	cachedAsgs, err := svc.asgRepo.QueryUserAssignments(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying cached assignments")
	}
	open, err := svc.conflictSvc.QueryUnresolved(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying open conflicts")
	}
	resolver, err := svc.courseSvc.NameResolver(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "building name resolver")
	}

	det := conflict.NewDetector(userID, open, now)
	courseRows, courseConflicts := det.DetectCourses(cachedCourses, liveCourses)

	// only diff assignments of courses whose fetch succeeded; otherwise a
	// transient fetch failure would look like a mass upstream deletion
	liveNames := make(map[string]string, len(liveCourses))
	for _, crs := range liveCourses {
		liveNames[crs.ID] = crs.Name
	}
	diffableAsgs := make([]assignment.Assignment, 0, len(cachedAsgs))
	for _, asg := range cachedAsgs {
		if _, ok := fetched[asg.CourseID]; ok {
			diffableAsgs = append(diffableAsgs, asg)
		}
	}
	nameFor := func(courseID string) string {
		return resolver.Resolve(courseID, liveNames[courseID])
	}
	asgRows, asgConflicts := det.DetectAssignments(diffableAsgs, liveAsgs, nameFor)

	// idempotent upserts; per-item failures are logged and skipped
	for _, row := range courseRows {
		if _, err := svc.courseRepo.UpsertCourse(ctx, row); err != nil {
			svc.log.Warn("upserting course", err, map[string]interface{}{"course_id": row.RemoteID})
			stats.Errors = append(stats.Errors, fmt.Sprintf("course %s: %v", row.RemoteID, err))
			continue
		}
		stats.Courses++
	}
	for _, row := range asgRows {
		if _, err := svc.asgRepo.UpsertAssignment(ctx, row); err != nil {
			svc.log.Warn("upserting assignment", err, map[string]interface{}{"assignment_id": row.RemoteID})
			stats.Errors = append(stats.Errors, fmt.Sprintf("assignment %s: %v", row.RemoteID, err))
			continue
		}
		stats.Assignments++
		if row.Submitted() {
			stats.Submissions++
		}
	}

	stored, err := svc.conflictSvc.Record(ctx, append(courseConflicts, asgConflicts...))
	if err != nil {
		return Stats{}, errors.Wrap(err, "recording conflicts")
	}
	stats.NewConflicts = stored

	if err := svc.tokens.MarkSynced(ctx, userID, now); err != nil {
		svc.log.Warn("stamping last sync", err)
	}
	return stats, nil
}

// Status reports the cache summary without touching the remote API.
func (svc *Service) Status(ctx context.Context, userID string) (Status, error) {
	var st Status
	var err error

	if st.Courses, err = svc.courseRepo.CountUserCourses(ctx, userID); err != nil {
		return Status{}, errors.Wrap(err, "counting courses")
	}
	if st.Assignments, err = svc.asgRepo.CountUserAssignments(ctx, userID); err != nil {
		return Status{}, errors.Wrap(err, "counting assignments")
	}
	if st.UnresolvedConflicts, err = svc.conflictSvc.CountUnresolved(ctx, userID); err != nil {
		return Status{}, errors.Wrap(err, "counting conflicts")
	}

	tok, err := svc.tokens.Get(ctx, userID)
	switch errors.Cause(err) {
	case nil:
		st.LastSync = tok.LastSyncedAt
	case token.ErrNotFound:
		st.NeedsToken = true
	default:
		return Status{}, errors.Wrap(err, "getting token")
	}
	st.Stale = !st.LastSync.Valid || time.Since(st.LastSync.Time) > core.Conf.Canvas.MaxSyncAge
	return st, nil
}

// Overview loads courses, assignments and grades concurrently. If any
// collection fails the whole read fails, naming the collection
// ("Grades: <cause>"); there is no partial payload.
func (svc *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	var ov Overview
	errc := make(chan error, 3)

	go func() {
		views, err := svc.courseSvc.QueryAll(ctx, userID)
		ov.Courses = views
		errc <- wrapCollection("Courses", err)
	}()
	go func() {
		asgs, err := svc.asgSvc.QueryAll(ctx, userID)
		ov.Assignments = asgs
		errc <- wrapCollection("Assignments", err)
	}()
	go func() {
		grades, err := svc.asgSvc.QueryGrades(ctx, userID)
		ov.Grades = grades
		errc <- wrapCollection("Grades", err)
	}()

	var firstErr error
	for i := 0; i < 3; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return Overview{}, firstErr
	}

	if ov.Courses == nil {
		ov.Courses = []course.View{}
	}
	if ov.Assignments == nil {
		ov.Assignments = []assignment.Assignment{}
	}
	if ov.Grades == nil {
		ov.Grades = []assignment.Assignment{}
	}
	return ov, nil
}

func wrapCollection(name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, name)
}

func (svc *Service) notifyConflicts(userEmail string, count int) {
	plural := "s"
	if count == 1 {
		plural = ""
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: userEmail}},
		Subject: fmt.Sprintf("%d sync conflict%s need your attention", count, plural),
		BodyStr: fmt.Sprintf(
			"Your latest Canvas sync found %d change%s that no longer match your local data.\n"+
				"Review them at %s/conflicts to keep your dashboard accurate.\n",
			count, plural, core.Conf.FrontendBaseURL,
		),
	})
}
