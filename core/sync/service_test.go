package sync_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/conflict"
	"github.com/trezcool/classmirror/core/course"
	"github.com/trezcool/classmirror/core/lms"
	syncsvc "github.com/trezcool/classmirror/core/sync"
	"github.com/trezcool/classmirror/core/token"
	dummydb "github.com/trezcool/classmirror/storage/database/dummy"
)

// fakeClient serves canned snapshots and scripted failures.
type fakeClient struct {
	courses    []lms.Course
	courseErr  error
	asgs       map[string][]lms.Assignment
	asgErr     map[string]error
	validateFn func(baseURL, tok string) error
}

var _ lms.Client = (*fakeClient)(nil)

func (c *fakeClient) ValidateToken(_ context.Context, baseURL, tok string) error {
	if c.validateFn != nil {
		return c.validateFn(baseURL, tok)
	}
	return nil
}

func (c *fakeClient) ListCourses(context.Context, string, string) ([]lms.Course, error) {
	return c.courses, c.courseErr
}

func (c *fakeClient) ListAssignments(_ context.Context, _, _, courseID string) ([]lms.Assignment, error) {
	if err, ok := c.asgErr[courseID]; ok {
		return nil, err
	}
	return c.asgs[courseID], nil
}

type captureMail struct {
	msgs []*core.EmailMessage
}

func (m *captureMail) SendMessages(msgs ...*core.EmailMessage) {
	m.msgs = append(m.msgs, msgs...)
}

type syncFixture struct {
	svc      *syncsvc.Service
	client   *fakeClient
	mail     *captureMail
	tokenSvc token.ServiceInterface
	courses  course.Repository
	asgs     assignment.Repository
	cflSvc   conflict.ServiceInterface
}

func newSyncFixture(t *testing.T, client *fakeClient) *syncFixture {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("opening dummy db: %v", err)
	}

	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	mail := &captureMail{}

	courseRepo := dummydb.NewCourseRepository(db)
	mappingRepo := dummydb.NewMappingRepository(db)
	asgRepo := dummydb.NewAssignmentRepository(db)
	conflictRepo := dummydb.NewConflictRepository(db)
	tokenRepo := dummydb.NewTokenRepository(db)

	courseSvc := course.NewService(courseRepo, mappingRepo, logger)
	asgSvc := assignment.NewService(asgRepo, logger)
	conflictSvc := conflict.NewService(db, conflictRepo, courseRepo, asgRepo, logger)
	tokenSvc := token.NewService(tokenRepo, client, logger)

	return &syncFixture{
		svc: syncsvc.NewService(
			client, tokenSvc, db,
			courseRepo, courseSvc,
			asgRepo, asgSvc,
			conflictSvc, mail, logger,
		),
		client:   client,
		mail:     mail,
		tokenSvc: tokenSvc,
		courses:  courseRepo,
		asgs:     asgRepo,
		cflSvc:   conflictSvc,
	}
}

func (f *syncFixture) seedToken(t *testing.T) {
	t.Helper()
	if _, err := f.tokenSvc.Set(context.Background(), "u1", "https://canvas.test", "tok-123"); err != nil {
		t.Fatalf("seeding token: %v", err)
	}
}

func snapshotClient() *fakeClient {
	return &fakeClient{
		courses: []lms.Course{
			{ID: "1", Name: "Intro to CS", CourseCode: "CS101", WorkflowState: "available"},
			{ID: "2", Name: "Linear Algebra", CourseCode: "MATH242", WorkflowState: "available"},
		},
		asgs: map[string][]lms.Assignment{
			"1": {
				{ID: "10", CourseID: "1", Name: "Essay 1", PointsPossible: 100,
					Submission: &lms.Submission{Score: null.Float64From(88), WorkflowState: lms.SubmissionGraded}},
				{ID: "11", CourseID: "1", Name: "Quiz 1", PointsPossible: 10},
			},
			"2": {
				{ID: "20", CourseID: "2", Name: "Problem Set 1", PointsPossible: 50,
					Submission: &lms.Submission{WorkflowState: lms.SubmissionSubmitted}},
			},
		},
	}
}

func TestService_Run_freshSync(t *testing.T) {
	f := newSyncFixture(t, snapshotClient())
	f.seedToken(t)
	ctx := context.Background()

	stats, err := f.svc.Run(ctx, "u1", "")
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.Courses)
	assert.Equal(t, 3, stats.Assignments)
	assert.Equal(t, 2, stats.Submissions) // graded + submitted
	assert.Equal(t, 0, stats.NewConflicts)
	assert.Empty(t, stats.Errors)

	courses, err := f.courses.QueryUserCourses(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, courses, 2)

	asgs, err := f.asgs.QueryUserAssignments(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, asgs, 3)

	// new rows get the resolved course name denormalized
	for _, asg := range asgs {
		assert.NotEmpty(t, asg.CourseName)
	}

	status, err := f.svc.Status(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 2, status.Courses)
	assert.Equal(t, 3, status.Assignments)
	assert.True(t, status.LastSync.Valid)
	assert.False(t, status.Stale)
	assert.False(t, status.NeedsToken)
}

func TestService_Run_detectsConflictsOnSecondSync(t *testing.T) {
	client := snapshotClient()
	f := newSyncFixture(t, client)
	f.seedToken(t)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, "u1", "")
	assert.NoError(t, err)

	// upstream renames a course and bumps a grade
	client.courses[0].Name = "Intro to Computer Science"
	client.asgs["1"][0].Submission.Score = null.Float64From(95)

	stats, err := f.svc.Run(ctx, "u1", "student@classmirror.test")
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.NewConflicts)

	open, err := f.cflSvc.QueryUnresolved(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, open, 2)

	// cached values stay pinned until resolution
	crs, err := f.courses.GetCourse(ctx, "u1", "1")
	assert.NoError(t, err)
	assert.Equal(t, "Intro to CS", crs.Name)
	asg, err := f.asgs.GetAssignment(ctx, "u1", "10")
	assert.NoError(t, err)
	assert.Equal(t, 88.0, asg.Score.Float64)

	// conflict digest email went out
	assert.Len(t, f.mail.msgs, 1)
	assert.Equal(t, "student@classmirror.test", f.mail.msgs[0].To[0].Address)

	// a third run against the same snapshot does not duplicate open slots
	stats, err = f.svc.Run(ctx, "u1", "student@classmirror.test")
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.NewConflicts)
	assert.Len(t, f.mail.msgs, 1)
}

func TestService_Run_perCourseFailureContinues(t *testing.T) {
	client := snapshotClient()
	f := newSyncFixture(t, client)
	f.seedToken(t)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, "u1", "")
	assert.NoError(t, err)

	// course 1's assignment fetch starts failing
	client.asgErr = map[string]error{"1": &core.UpstreamError{Op: "Assignments", StatusCode: 503, CanRetry: true}}

	stats, err := f.svc.Run(ctx, "u1", "")
	assert.NoError(t, err)
	assert.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "course 1")

	// course 2 still synced
	assert.Equal(t, 2, stats.Courses)
	assert.Equal(t, 1, stats.Assignments)

	// the unfetchable course's cached assignments are not flagged as deleted
	open, err := f.cflSvc.QueryUnresolved(ctx, "u1")
	assert.NoError(t, err)
	assert.Empty(t, open)
}

func TestService_Run_courseFetchFailureAborts(t *testing.T) {
	client := snapshotClient()
	client.courseErr = &core.UpstreamError{Op: "Courses", StatusCode: 401, NeedsReauth: true}
	f := newSyncFixture(t, client)
	f.seedToken(t)

	_, err := f.svc.Run(context.Background(), "u1", "")
	uerr, ok := errors.Cause(err).(*core.UpstreamError)
	assert.True(t, ok)
	assert.True(t, uerr.NeedsReauth)
}

func TestService_Run_withoutToken(t *testing.T) {
	f := newSyncFixture(t, snapshotClient())

	_, err := f.svc.Run(context.Background(), "u1", "")
	assert.Equal(t, token.ErrNotFound, errors.Cause(err))
}

func TestService_Status_withoutToken(t *testing.T) {
	f := newSyncFixture(t, snapshotClient())

	status, err := f.svc.Status(context.Background(), "u1")
	assert.NoError(t, err)
	assert.True(t, status.NeedsToken)
	assert.True(t, status.Stale)
	assert.False(t, status.LastSync.Valid)
}

func TestService_Overview(t *testing.T) {
	f := newSyncFixture(t, snapshotClient())
	f.seedToken(t)
	ctx := context.Background()

	// empty cache: empty arrays, not an error
	ov, err := f.svc.Overview(ctx, "u1")
	assert.NoError(t, err)
	assert.NotNil(t, ov.Courses)
	assert.Empty(t, ov.Courses)
	assert.NotNil(t, ov.Grades)

	_, err = f.svc.Run(ctx, "u1", "")
	assert.NoError(t, err)

	ov, err = f.svc.Overview(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, ov.Courses, 2)
	assert.Len(t, ov.Assignments, 3)
	assert.Len(t, ov.Grades, 1) // only the graded essay
}

// failingAsgSvc makes the grades collection fail so the error naming can be
// asserted.
type failingAsgSvc struct {
	assignment.ServiceInterface
}

func (f failingAsgSvc) QueryGrades(context.Context, string) ([]assignment.Assignment, error) {
	return nil, errors.New("store offline")
}

func TestService_Overview_failureNamesCollection(t *testing.T) {
	db, err := dummydb.Open()
	assert.NoError(t, err)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))

	courseRepo := dummydb.NewCourseRepository(db)
	asgRepo := dummydb.NewAssignmentRepository(db)
	courseSvc := course.NewService(courseRepo, dummydb.NewMappingRepository(db), logger)
	asgSvc := failingAsgSvc{assignment.NewService(asgRepo, logger)}
	conflictSvc := conflict.NewService(db, dummydb.NewConflictRepository(db), courseRepo, asgRepo, logger)
	tokenSvc := token.NewService(dummydb.NewTokenRepository(db), snapshotClient(), logger)

	svc := syncsvc.NewService(
		snapshotClient(), tokenSvc, db,
		courseRepo, courseSvc,
		asgRepo, asgSvc,
		conflictSvc, &captureMail{}, logger,
	)

	_, err = svc.Overview(context.Background(), "u1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Grades: store offline")
}
