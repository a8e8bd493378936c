package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// envelope follows JSend: "success" carries data, "fail" is a client error,
// "error" is ours.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func successList(c echo.Context, items any, count, limit, offset int, filters map[string]any) error {
	data := map[string]any{
		"items": items,
		"page":  page{Limit: limit, Offset: offset, Count: count},
	}
	if filters != nil {
		data["filters"] = filters
	}
	return success(c, data)
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelope{Status: "fail", Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

// internalError never leaks the cause; callers log it first.
func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, envelope{
		Status:  "error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
