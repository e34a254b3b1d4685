package token_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/lms"
	"github.com/trezcool/classmirror/core/token"
	dummydb "github.com/trezcool/classmirror/storage/database/dummy"
)

type fakeClient struct {
	validateErr error
	gotBaseURL  string
	gotToken    string
}

var _ lms.Client = (*fakeClient)(nil)

func (c *fakeClient) ValidateToken(_ context.Context, baseURL, tok string) error {
	c.gotBaseURL = baseURL
	c.gotToken = tok
	return c.validateErr
}
func (c *fakeClient) ListCourses(context.Context, string, string) ([]lms.Course, error) {
	return nil, nil
}
func (c *fakeClient) ListAssignments(context.Context, string, string, string) ([]lms.Assignment, error) {
	return nil, nil
}

func tokenFixture(t *testing.T) (*token.Service, token.Repository, *fakeClient) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("opening dummy db: %v", err)
	}
	repo := dummydb.NewTokenRepository(db)
	client := &fakeClient{}
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	return token.NewService(repo, client, logger), repo, client
}

func TestServiceSet(t *testing.T) {
	ctx := context.Background()
	svc, repo, client := tokenFixture(t)

	// empty token rejected before any upstream call
	_, err := svc.Set(ctx, "u1", "", "  ")
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Empty(t, client.gotToken)

	// stored sealed, validated, base URL defaulted
	tok, err := svc.Set(ctx, "u1", "", " tok-123 ")
	assert.NoError(t, err)
	assert.Equal(t, core.Conf.Canvas.DefaultBaseURL, tok.BaseURL)
	assert.Equal(t, "tok-123", client.gotToken)
	assert.True(t, tok.LastValidatedAt.Valid)
	assert.NotEmpty(t, tok.Sealed)
	assert.NotContains(t, string(tok.Sealed), "tok-123")

	// upstream rejection surfaces and nothing is stored for that user
	client.validateErr = &core.UpstreamError{Op: "Token", NeedsReauth: true}
	_, err = svc.Set(ctx, "u2", "https://canvas.school.edu", "bad-token")
	var uerr *core.UpstreamError
	assert.True(t, errors.As(err, &uerr))
	_, err = repo.GetToken(ctx, "u2")
	assert.Equal(t, token.ErrNotFound, errors.Cause(err))
}

func TestServiceCredentials(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := tokenFixture(t)

	_, _, err := svc.Credentials(ctx, "u1")
	assert.Equal(t, token.ErrNotFound, errors.Cause(err))

	_, err = svc.Set(ctx, "u1", "https://canvas.school.edu", "tok-123")
	assert.NoError(t, err)

	baseURL, raw, err := svc.Credentials(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, "https://canvas.school.edu", baseURL)
	assert.Equal(t, "tok-123", raw)

	// a corrupted sealed value never yields a token
	tok, err := repo.GetToken(ctx, "u1")
	assert.NoError(t, err)
	tok.Sealed[len(tok.Sealed)-1] ^= 0xff
	_, err = repo.UpsertToken(ctx, tok)
	assert.NoError(t, err)

	_, _, err = svc.Credentials(ctx, "u1")
	assert.Equal(t, token.ErrSealedToken, errors.Cause(err))
}

func TestServiceMarkSynced(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := tokenFixture(t)

	_, err := svc.Set(ctx, "u1", "", "tok-123")
	assert.NoError(t, err)

	at := time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, svc.MarkSynced(ctx, "u1", at))

	tok, err := repo.GetToken(ctx, "u1")
	assert.NoError(t, err)
	assert.True(t, tok.LastSyncedAt.Valid)
	assert.Equal(t, at, tok.LastSyncedAt.Time)
}
