// Package canvas implements lms.Client against the Canvas REST API
// (GET /api/v1/...) with bearer-token auth and Link-header pagination.
package canvas

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/lms"
)

type client struct {
	http     *http.Client
	pageSize int
	log      core.Logger
}

var _ lms.Client = (*client)(nil)

func NewClient(log core.Logger) *client {
	return &client{
		http:     &http.Client{Timeout: core.Conf.Canvas.RequestTimeout},
		pageSize: core.Conf.Canvas.PageSize,
		log:      log,
	}
}

// Canvas wire formats. IDs are numeric upstream; we carry them as strings
// internally.
type (
	canvasTerm struct {
		StartAt *time.Time `json:"start_at"`
		EndAt   *time.Time `json:"end_at"`
	}

	canvasCourse struct {
		ID            int64       `json:"id"`
		Name          string      `json:"name"`
		CourseCode    string      `json:"course_code"`
		WorkflowState string      `json:"workflow_state"`
		Term          *canvasTerm `json:"term"`
	}

	canvasSubmission struct {
		Score         *float64   `json:"score"`
		SubmittedAt   *time.Time `json:"submitted_at"`
		WorkflowState string     `json:"workflow_state"`
	}

	canvasAssignment struct {
		ID             int64             `json:"id"`
		CourseID       int64             `json:"course_id"`
		Name           string            `json:"name"`
		DueAt          *time.Time        `json:"due_at"`
		PointsPossible float64           `json:"points_possible"`
		Submission     *canvasSubmission `json:"submission"`
	}
)

func (c *client) ValidateToken(ctx context.Context, baseURL, token string) error {
	_, _, err := c.get(ctx, "Token", baseURL, token, "/api/v1/users/self", nil)
	return err
}

func (c *client) ListCourses(ctx context.Context, baseURL, token string) ([]lms.Course, error) {
	params := url.Values{}
	params.Set("enrollment_state", "active")
	params.Add("include[]", "term")

	courses := make([]lms.Course, 0)
	next := c.endpoint(baseURL, "/api/v1/courses", params)
	for next != "" {
		var page []canvasCourse
		var err error
		if next, err = c.getPage(ctx, "Courses", token, next, &page); err != nil {
			return nil, err
		}
		for _, crs := range page {
			courses = append(courses, crs.toCourse())
		}
	}
	return courses, nil
}

func (c *client) ListAssignments(ctx context.Context, baseURL, token, courseID string) ([]lms.Assignment, error) {
	params := url.Values{}
	params.Add("include[]", "submission")

	asgs := make([]lms.Assignment, 0)
	next := c.endpoint(baseURL, "/api/v1/courses/"+courseID+"/assignments", params)
	for next != "" {
		var page []canvasAssignment
		var err error
		if next, err = c.getPage(ctx, "Assignments", token, next, &page); err != nil {
			return nil, err
		}
		for _, asg := range page {
			asgs = append(asgs, asg.toAssignment())
		}
	}
	return asgs, nil
}

func (c *client) endpoint(baseURL, path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("per_page", strconv.Itoa(c.pageSize))
	return strings.TrimSuffix(baseURL, "/") + path + "?" + params.Encode()
}

// get performs a single authenticated GET and returns the body and the
// paginated "next" URL, if any.
func (c *client) get(ctx context.Context, op, baseURL, token, path string, params url.Values) ([]byte, string, error) {
	return c.do(ctx, op, token, c.endpoint(baseURL, path, params))
}

func (c *client) getPage(ctx context.Context, op, token, pageURL string, out interface{}) (string, error) {
	body, next, err := c.do(ctx, op, token, pageURL)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return "", &core.UpstreamError{Op: op, Err: errors.Wrap(err, "decoding response")}
	}
	return next, nil
}

func (c *client) do(ctx context.Context, op, token, reqURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", &core.UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, "", core.NewUpstreamTimeout(op, err)
		}
		return nil, "", &core.UpstreamError{Op: op, Err: err, CanRetry: true}
	}
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, "", &core.UpstreamError{Op: op, Err: errors.Wrap(err, "reading response")}
	}

	if res.StatusCode != http.StatusOK {
		return nil, "", c.statusErr(op, res.StatusCode, body)
	}
	return body, nextLink(res.Header.Get("Link")), nil
}

func (c *client) statusErr(op string, status int, body []byte) error {
	err := errors.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body)))
	uerr := &core.UpstreamError{Op: op, Err: err, StatusCode: status}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		uerr.NeedsReauth = true
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		uerr.CanRetry = true
	}
	return uerr
}

func isTimeout(err error) bool {
	if errors.Cause(err) == context.DeadlineExceeded {
		return true
	}
	var terr interface{ Timeout() bool }
	if errors.As(err, &terr) {
		return terr.Timeout()
	}
	return false
}

// nextLink extracts the rel="next" URL from a Canvas Link header.
// e.g. `<https://x/api/v1/courses?page=2>; rel="next", <...>; rel="last"`
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		if strings.TrimSpace(sections[1]) != `rel="next"` {
			continue
		}
		return strings.Trim(strings.TrimSpace(sections[0]), "<>")
	}
	return ""
}

func (crs canvasCourse) toCourse() lms.Course {
	out := lms.Course{
		ID:            strconv.FormatInt(crs.ID, 10),
		Name:          crs.Name,
		CourseCode:    crs.CourseCode,
		WorkflowState: crs.WorkflowState,
	}
	if crs.Term != nil {
		out.TermStart = null.TimeFromPtr(crs.Term.StartAt)
		out.TermEnd = null.TimeFromPtr(crs.Term.EndAt)
	}
	return out
}

func (asg canvasAssignment) toAssignment() lms.Assignment {
	out := lms.Assignment{
		ID:             strconv.FormatInt(asg.ID, 10),
		CourseID:       strconv.FormatInt(asg.CourseID, 10),
		Name:           asg.Name,
		DueAt:          null.TimeFromPtr(asg.DueAt),
		PointsPossible: asg.PointsPossible,
	}
	if asg.Submission != nil {
		out.Submission = &lms.Submission{
			Score:         null.Float64FromPtr(asg.Submission.Score),
			SubmittedAt:   null.TimeFromPtr(asg.Submission.SubmittedAt),
			WorkflowState: asg.Submission.WorkflowState,
		}
	}
	return out
}
