package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/lms"
	syncsvc "github.com/trezcool/classmirror/core/sync"
	"github.com/trezcool/classmirror/core/token"
)

func TestCanvasAPI_setToken(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")

	// token required
	req, rec := newAuthRequest(http.MethodPost, "/v1/canvas/token", tok, marshallObj(t, SetTokenRequest{}))
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// upstream rejects the token
	f.remoteClient.validateErr = &core.UpstreamError{Op: "Token", StatusCode: http.StatusUnauthorized, NeedsReauth: true}
	req, rec = newAuthRequest(http.MethodPost, "/v1/canvas/token", tok, marshallObj(t, SetTokenRequest{Token: "bad-token"}))
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errRes struct {
		NeedsReauth bool `json:"needs_reauth"`
		CanRetry    bool `json:"can_retry"`
	}
	decodeBody(t, rec, &errRes)
	assert.True(t, errRes.NeedsReauth)

	// upstream accepts: stored with the default base URL, token not echoed back
	f.remoteClient.validateErr = nil
	req, rec = newAuthRequest(http.MethodPost, "/v1/canvas/token", tok, marshallObj(t, SetTokenRequest{Token: "tok-123"}))
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var stored token.Token
	decodeBody(t, rec, &stored)
	assert.Equal(t, core.Conf.Canvas.DefaultBaseURL, stored.BaseURL)
	assert.True(t, stored.LastValidatedAt.Valid)
	assert.NotContains(t, rec.Body.String(), "tok-123")
}

func TestSyncAPI_run(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")

	// no Canvas token configured yet
	req, rec := newAuthRequest(http.MethodPost, "/v1/sync", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no Canvas token configured")

	// configure token and remote snapshot
	req, rec = newAuthRequest(http.MethodPost, "/v1/canvas/token", tok, marshallObj(t, SetTokenRequest{Token: "tok-123"}))
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.remoteClient.courses = []lms.Course{{ID: "1", Name: "Intro to CS", CourseCode: "CS101", WorkflowState: "available"}}
	f.remoteClient.asgs["1"] = []lms.Assignment{
		{ID: "10", CourseID: "1", Name: "Essay 1", PointsPossible: 100,
			Submission: &lms.Submission{Score: null.Float64From(88), WorkflowState: lms.SubmissionGraded}},
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/sync", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats syncsvc.Stats
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats.Courses)
	assert.Equal(t, 1, stats.Assignments)
	assert.Equal(t, 1, stats.Submissions)
	assert.Equal(t, 0, stats.NewConflicts)
}

func TestSyncAPI_status(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")

	req, rec := newAuthRequest(http.MethodGet, "/v1/sync/status", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status syncsvc.Status
	decodeBody(t, rec, &status)
	assert.True(t, status.NeedsToken)
	assert.True(t, status.Stale)
	assert.Equal(t, 0, status.Courses)
}

func TestSyncAPI_overview(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")
	f.seedCourse(t, "u1", "1", "Intro to CS")
	f.seedAssignment(t, "u1", "10", "1", null.Float64From(88))
	f.seedAssignment(t, "u1", "11", "1", null.Float64{})

	req, rec := newAuthRequest(http.MethodGet, "/v1/overview", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var ov syncsvc.Overview
	decodeBody(t, rec, &ov)
	assert.Len(t, ov.Courses, 1)
	assert.Len(t, ov.Assignments, 2)
	assert.Len(t, ov.Grades, 1)
}
