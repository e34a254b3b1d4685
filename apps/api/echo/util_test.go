package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/conflict"
	"github.com/trezcool/classmirror/core/course"
	"github.com/trezcool/classmirror/core/lms"
	syncsvc "github.com/trezcool/classmirror/core/sync"
	"github.com/trezcool/classmirror/core/token"
	emailsvc "github.com/trezcool/classmirror/services/email"
	dummydb "github.com/trezcool/classmirror/storage/database/dummy"
)

type apiFixture struct {
	app *echo.Echo

	courses      course.Repository
	mappings     course.MappingRepository
	asgs         assignment.Repository
	conflicts    conflict.Repository
	tokens       token.Repository
	conflictSvc  conflict.ServiceInterface
	tokenSvc     token.ServiceInterface
	remoteClient *stubClient
}

// stubClient is just enough lms.Client for token validation and sync runs.
type stubClient struct {
	courses     []lms.Course
	asgs        map[string][]lms.Assignment
	validateErr error
}

var _ lms.Client = (*stubClient)(nil)

func (c *stubClient) ValidateToken(context.Context, string, string) error { return c.validateErr }
func (c *stubClient) ListCourses(context.Context, string, string) ([]lms.Course, error) {
	return c.courses, nil
}
func (c *stubClient) ListAssignments(_ context.Context, _, _, courseID string) ([]lms.Assignment, error) {
	return c.asgs[courseID], nil
}

func initApp(t *testing.T) *apiFixture {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("opening dummy db: %v", err)
	}

	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	client := &stubClient{asgs: make(map[string][]lms.Assignment)}

	courseRepo := dummydb.NewCourseRepository(db)
	mappingRepo := dummydb.NewMappingRepository(db)
	asgRepo := dummydb.NewAssignmentRepository(db)
	conflictRepo := dummydb.NewConflictRepository(db)
	tokenRepo := dummydb.NewTokenRepository(db)

	courseSvc := course.NewService(courseRepo, mappingRepo, logger)
	asgSvc := assignment.NewService(asgRepo, logger)
	conflictSvc := conflict.NewService(db, conflictRepo, courseRepo, asgRepo, logger)
	tokenSvc := token.NewService(tokenRepo, client, logger)
	syncSvc := syncsvc.NewService(
		client, tokenSvc, db,
		courseRepo, courseSvc,
		asgRepo, asgSvc,
		conflictSvc, emailsvc.NewConsoleServiceMock(), logger,
	)

	validate, translator := core.NewValidator()

	app := echo.New()
	app.Pre(middleware.RemoveTrailingSlash())
	app.HTTPErrorHandler = newAppHTTPErrorHandler(logger, translator, func() {})

	v1 := app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	registerSyncAPI(v1, jwt, syncSvc)
	registerConflictAPI(v1, jwt, conflictSvc, validate)
	registerCourseAPI(v1, jwt, courseSvc, asgSvc, validate)
	registerCanvasAPI(v1, jwt, tokenSvc, validate)

	return &apiFixture{
		app:          app,
		courses:      courseRepo,
		mappings:     mappingRepo,
		asgs:         asgRepo,
		conflicts:    conflictRepo,
		tokens:       tokenRepo,
		conflictSvc:  conflictSvc,
		tokenSvc:     tokenSvc,
		remoteClient: client,
	}
}

func getToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := GenerateToken(GetUserClaims(userID, userID+"@classmirror.test"))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return tok
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func (f *apiFixture) seedCourse(t *testing.T, userID, remoteID, name string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := f.courses.UpsertCourse(context.Background(), course.Course{
		UserID: userID, RemoteID: remoteID, Name: name, CourseCode: "CS101",
		WorkflowState: "available", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seeding course: %v", err)
	}
}

func (f *apiFixture) seedAssignment(t *testing.T, userID, remoteID, courseID string, score null.Float64) {
	t.Helper()
	now := time.Now().UTC()
	state := lms.SubmissionUnsubmitted
	if score.Valid {
		state = lms.SubmissionGraded
	}
	_, err := f.asgs.UpsertAssignment(context.Background(), assignment.Assignment{
		UserID: userID, RemoteID: remoteID, CourseID: courseID, CourseName: "Intro to CS",
		Name: "Essay " + remoteID, PointsPossible: 100, Score: score,
		SubmissionState: state, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}
}

func (f *apiFixture) seedConflict(t *testing.T, userID string, cfl conflict.Conflict) conflict.Conflict {
	t.Helper()
	if cfl.ID == "" {
		cfl.ID = "cfl-" + cfl.ItemType + "-" + cfl.ItemID + "-" + cfl.Field
	}
	cfl.UserID = userID
	cfl.Status = conflict.StatusUnresolved
	cfl.DetectedAt = time.Now().UTC()
	stored, err := f.conflicts.CreateConflict(context.Background(), cfl)
	if err != nil {
		t.Fatalf("seeding conflict: %v", err)
	}
	return stored
}
