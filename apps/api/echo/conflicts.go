package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classmirror/core/conflict"
)

type conflictApi struct {
	svc      conflict.ServiceInterface
	validate *validator.Validate
}

func registerConflictAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc conflict.ServiceInterface, validate *validator.Validate) {
	api := conflictApi{svc: svc, validate: validate}

	cg := g.Group("/conflicts", jwt)
	cg.GET("", api.query)
	cg.POST("", api.batch)
	cg.POST("/:id/resolve", api.resolve)
	cg.POST("/:id/ignore", api.ignore)
}

// Handlers

func (api *conflictApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	conflicts, err := api.svc.QueryUnresolved(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying conflicts")
	}
	return ctx.JSON(http.StatusOK, conflicts)
}

func (api *conflictApi) resolve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	cfl, err := api.svc.Resolve(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "resolving conflict")
	}
	return ctx.JSON(http.StatusOK, ConflictActionResponse{
		Success: true,
		Conflict: ConflictOutcome{
			ID:            cfl.ID,
			ItemType:      cfl.ItemType,
			Field:         cfl.Field,
			ResolvedValue: cfl.LiveValue,
		},
	})
}

func (api *conflictApi) ignore(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	cfl, err := api.svc.Ignore(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "ignoring conflict")
	}
	return ctx.JSON(http.StatusOK, ConflictActionResponse{
		Success: true,
		Conflict: ConflictOutcome{
			ID:        cfl.ID,
			ItemType:  cfl.ItemType,
			Field:     cfl.Field,
			KeptValue: cfl.CachedValue,
		},
	})
}

func (api *conflictApi) batch(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data BatchConflictRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BatchConflictRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var results []conflict.BatchResult
	switch data.Action {
	case actionResolve:
		results = api.svc.ResolveBatch(ctx.Request().Context(), data.ConflictIDs, claims.Subject)
	case actionIgnore:
		results = api.svc.IgnoreBatch(ctx.Request().Context(), data.ConflictIDs, claims.Subject)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"results": results})
}
