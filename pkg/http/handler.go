package http

import "github.com/labstack/echo/v4"

// Handler is one route group: auctions, bids, deposits, escrow, admin or
// the websocket feed. The handler layer composes them into one server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
