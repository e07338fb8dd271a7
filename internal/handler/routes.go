package handler

import (
	xhttp "Gavel/pkg/http"

	"github.com/labstack/echo/v4"
)

// Composite registers several route groups as one handler.
type Composite []xhttp.Handler

func (c Composite) RegisterRoutes(e *echo.Echo) {
	for _, h := range c {
		h.RegisterRoutes(e)
	}
}
