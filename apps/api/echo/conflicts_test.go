package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/conflict"
	"github.com/trezcool/classmirror/core/course"
)

func TestConflictAPI_query(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")

	// no session
	req, rec := newRequest(http.MethodGet, "/v1/conflicts")
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// empty list, never 404
	req, rec = newAuthRequest(http.MethodGet, "/v1/conflicts", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// only the caller's unresolved conflicts
	f.seedCourse(t, "u1", "1", "Intro to CS")
	f.seedConflict(t, "u1", conflict.Conflict{
		ItemType: conflict.ItemCourse, ItemID: "1", Field: course.FieldName,
		CachedValue: "Intro to CS", LiveValue: "Renamed",
	})
	f.seedConflict(t, "u2", conflict.Conflict{
		ItemType: conflict.ItemCourse, ItemID: "9", Field: course.FieldName,
		CachedValue: "Other", LiveValue: "Theirs",
	})

	req, rec = newAuthRequest(http.MethodGet, "/v1/conflicts", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var conflicts []conflict.Conflict
	decodeBody(t, rec, &conflicts)
	assert.Len(t, conflicts, 1)
	assert.Equal(t, "1", conflicts[0].ItemID)
}

func TestConflictAPI_resolve(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")
	f.seedCourse(t, "u1", "1", "Intro to CS")
	cfl := f.seedConflict(t, "u1", conflict.Conflict{
		ItemType: conflict.ItemCourse, ItemID: "1", Field: course.FieldName,
		CachedValue: "Intro to CS", LiveValue: "Intro to Computer Science",
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/conflicts/"+cfl.ID+"/resolve", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var res ConflictActionResponse
	decodeBody(t, rec, &res)
	assert.True(t, res.Success)
	assert.Equal(t, cfl.ID, res.Conflict.ID)
	assert.Equal(t, conflict.ItemCourse, res.Conflict.ItemType)
	assert.Equal(t, course.FieldName, res.Conflict.Field)
	assert.Equal(t, "Intro to Computer Science", res.Conflict.ResolvedValue)
	assert.Empty(t, res.Conflict.KeptValue)

	// cache updated
	crs, err := f.courses.GetCourse(context.Background(), "u1", "1")
	assert.NoError(t, err)
	assert.Equal(t, "Intro to Computer Science", crs.Name)

	// resolving again: the slot is closed
	req, rec = newAuthRequest(http.MethodPost, "/v1/conflicts/"+cfl.ID+"/resolve", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConflictAPI_resolve_notOwned(t *testing.T) {
	f := initApp(t)
	f.seedCourse(t, "u1", "1", "Intro to CS")
	cfl := f.seedConflict(t, "u1", conflict.Conflict{
		ItemType: conflict.ItemCourse, ItemID: "1", Field: course.FieldName,
		CachedValue: "Intro to CS", LiveValue: "Renamed",
	})

	// another user's session gets a plain 404
	req, rec := newAuthRequest(http.MethodPost, "/v1/conflicts/"+cfl.ID+"/resolve", getToken(t, "u2"))
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConflictAPI_ignore(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")
	f.seedAssignment(t, "u1", "10", "1", null.Float64From(88))
	cfl := f.seedConflict(t, "u1", conflict.Conflict{
		ItemType: conflict.ItemGrade, ItemID: "10", Field: assignment.FieldScore,
		CachedValue: "88", LiveValue: "92",
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/conflicts/"+cfl.ID+"/ignore", tok)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var res ConflictActionResponse
	decodeBody(t, rec, &res)
	assert.True(t, res.Success)
	assert.Equal(t, "88", res.Conflict.KeptValue)
	assert.Empty(t, res.Conflict.ResolvedValue)

	// cached score untouched
	asg, err := f.asgs.GetAssignment(context.Background(), "u1", "10")
	assert.NoError(t, err)
	assert.Equal(t, 88.0, asg.Score.Float64)
}

func TestConflictAPI_batch(t *testing.T) {
	f := initApp(t)
	tok := getToken(t, "u1")
	f.seedCourse(t, "u1", "1", "Intro to CS")
	f.seedCourse(t, "u1", "2", "Linear Algebra")
	cfl1 := f.seedConflict(t, "u1", conflict.Conflict{
		ItemType: conflict.ItemCourse, ItemID: "1", Field: course.FieldName,
		CachedValue: "Intro to CS", LiveValue: "Renamed 1",
	})
	cfl2 := f.seedConflict(t, "u1", conflict.Conflict{
		ItemType: conflict.ItemCourse, ItemID: "2", Field: course.FieldName,
		CachedValue: "Linear Algebra", LiveValue: "Renamed 2",
	})

	// unknown action rejected by validation
	body := marshallObj(t, BatchConflictRequest{ConflictIDs: []string{cfl1.ID}, Action: "discard"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/conflicts", tok, body)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// empty id list rejected
	body = marshallObj(t, BatchConflictRequest{ConflictIDs: []string{}, Action: actionResolve})
	req, rec = newAuthRequest(http.MethodPost, "/v1/conflicts", tok, body)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// best-effort batch: a bogus id fails alone
	body = marshallObj(t, BatchConflictRequest{ConflictIDs: []string{cfl1.ID, "bogus", cfl2.ID}, Action: actionResolve})
	req, rec = newAuthRequest(http.MethodPost, "/v1/conflicts", tok, body)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Results []conflict.BatchResult `json:"results"`
	}
	decodeBody(t, rec, &res)
	assert.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.NotEmpty(t, res.Results[1].Error)
	assert.True(t, res.Results[2].Success)
}
