package handlers

import (
	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	TotalItem  int         `json:"total_item"`
	Detail     string      `json:"detail"`
	Data       interface{} `json:"data"`
	StatusCode int         `json:"status_code"`
}

// AuthResponse is the envelope for endpoints that issue tokens.
type AuthResponse struct {
	Detail     string      `json:"detail"`
	Access     string      `json:"access"`
	Refresh    string      `json:"refresh"`
	Data       interface{} `json:"data"`
	StatusCode int         `json:"status_code"`
}

// Respond writes the standard envelope with no data payload.
func Respond(c echo.Context, status int, detail string) error {
	return RespondData(c, status, detail, 0, nil)
}

// RespondData writes the standard envelope.
func RespondData(c echo.Context, status int, detail string, totalItem int, data interface{}) error {
	return c.JSON(status, APIResponse{
		TotalItem:  totalItem,
		Detail:     detail,
		Data:       data,
		StatusCode: status,
	})
}

// RespondAuth writes the token envelope.
func RespondAuth(c echo.Context, status int, detail, access, refresh string, data interface{}) error {
	return c.JSON(status, AuthResponse{
		Detail:     detail,
		Access:     access,
		Refresh:    refresh,
		Data:       data,
		StatusCode: status,
	})
}
