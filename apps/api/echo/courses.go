package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/course"
)

type courseApi struct {
	svc      course.ServiceInterface
	asgSvc   assignment.ServiceInterface
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc course.ServiceInterface,
	asgSvc assignment.ServiceInterface,
	validate *validator.Validate,
) {
	api := courseApi{svc: svc, asgSvc: asgSvc, validate: validate}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.GET("/:id/assignments", api.queryAssignments)
	cg.PUT("/:id/name", api.setName)
	cg.DELETE("/:id/name", api.removeName)

	g.GET("/grades", api.queryGrades, jwt)
	g.GET("/analytics/summary", api.analyticsSummary, jwt)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	views, err := api.svc.QueryAll(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *courseApi) queryAssignments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	courseID := ctx.Param("id")

	// 404 for unknown courses, not an empty list
	if _, err := api.svc.Get(rctx, claims.Subject, courseID); err != nil {
		return errors.Wrap(err, "getting course")
	}

	asgs, err := api.asgSvc.QueryForCourse(rctx, claims.Subject, courseID)
	if err != nil {
		return errors.Wrap(err, "querying course assignments")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *courseApi) queryGrades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	grades, err := api.asgSvc.QueryGrades(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *courseApi) setName(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data SetNameRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetNameRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mapping, err := api.svc.SetName(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.Name)
	if err != nil {
		return errors.Wrap(err, "setting course name")
	}
	return ctx.JSON(http.StatusOK, mapping)
}

func (api *courseApi) removeName(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.RemoveName(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing course name")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) analyticsSummary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	resolver, err := api.svc.NameResolver(rctx, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building name resolver")
	}
	summaries, err := api.asgSvc.Summaries(rctx, claims.Subject, resolver)
	if err != nil {
		return errors.Wrap(err, "summarizing grades")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"courses":         summaries,
		"overall_average": assignment.OverallAverage(summaries),
	})
}
