package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classmirror/core/token"
)

type canvasApi struct {
	svc      token.ServiceInterface
	validate *validator.Validate
}

func registerCanvasAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc token.ServiceInterface, validate *validator.Validate) {
	api := canvasApi{svc: svc, validate: validate}

	g.POST("/canvas/token", api.setToken, jwt)
}

// Handlers

func (api *canvasApi) setToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data SetTokenRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetTokenRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tok, err := api.svc.Set(ctx.Request().Context(), claims.Subject, data.BaseURL, data.Token)
	if err != nil {
		return errors.Wrap(err, "storing Canvas token")
	}
	return ctx.JSON(http.StatusOK, tok)
}
