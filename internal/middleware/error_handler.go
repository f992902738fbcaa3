package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	TotalItem  int         `json:"total_item"`
	Detail     string      `json:"detail"`
	Data       interface{} `json:"data"`
	StatusCode int         `json:"status_code"`
}

// JSONErrorHandler renders every error through the standard response
// envelope instead of Echo's default.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := ""

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			detail = msg
		}
	}

	if detail == "" {
		switch code {
		case http.StatusNotFound:
			detail = "The resource you're looking for doesn't exist."
		case http.StatusForbidden:
			detail = "You don't have permission to access this resource."
		case http.StatusUnauthorized:
			detail = "Please log in to continue."
		case http.StatusBadRequest:
			detail = "The request could not be processed."
		default:
			detail = "Something went wrong. Please try again later."
		}
	}

	c.Logger().Error(err)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorBody{
		Detail:     detail,
		StatusCode: code,
	})
}
