package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	syncsvc "github.com/trezcool/classmirror/core/sync"
)

type syncApi struct {
	svc syncsvc.ServiceInterface
}

func registerSyncAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc syncsvc.ServiceInterface) {
	api := syncApi{svc: svc}

	sg := g.Group("/sync", jwt)
	sg.POST("", api.run)
	sg.GET("/status", api.status)

	g.GET("/overview", api.overview, jwt)
}

// Handlers

func (api *syncApi) run(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.Run(ctx.Request().Context(), claims.Subject, claims.Email)
	if err != nil {
		return errors.Wrap(err, "running sync")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *syncApi) status(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	status, err := api.svc.Status(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting sync status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *syncApi) overview(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	ov, err := api.svc.Overview(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "loading overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}
