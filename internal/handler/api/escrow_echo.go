package api

import (
	"time"

	"Gavel/internal/domain/models"
	"Gavel/internal/services/fraud"
	"Gavel/internal/usecase"
	xhttp "Gavel/pkg/http"
	xlogger "Gavel/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EscrowEchoHandler drives escrow transitions that originate from people
// rather than the settlement feed: confirmation, disputes, resolution and
// payout release. Carrier-driven transitions arrive over Kafka.
type EscrowEchoHandler struct {
	logger *xlogger.Logger
	escrow *usecase.EscrowCoordinator
	scorer *fraud.Scorer
}

func NewEscrowEchoHandler(logger *xlogger.Logger, escrow *usecase.EscrowCoordinator, scorer *fraud.Scorer) *EscrowEchoHandler {
	return &EscrowEchoHandler{logger: logger, escrow: escrow, scorer: scorer}
}

func (h *EscrowEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/escrows/:id")
	g.GET("", h.Get)
	g.POST("/confirm", h.Confirm)
	g.POST("/dispute", h.Dispute)
	g.POST("/resolve", h.Resolve)
	g.POST("/release", h.Release)

	e.POST("/api/weight-checks", h.WeightCheck)
}

func (h *EscrowEchoHandler) Get(c echo.Context) error {
	esc, err := h.escrow.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, esc)
}

func (h *EscrowEchoHandler) Confirm(c echo.Context) error {
	esc, err := h.escrow.Confirm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, esc)
}

func (h *EscrowEchoHandler) Dispute(c echo.Context) error {
	req := &models.DisputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	esc, err := h.escrow.Dispute(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.logger.Warn("dispute rejected", xlogger.String("escrow_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, esc)
}

func (h *EscrowEchoHandler) Resolve(c echo.Context) error {
	req := &models.ResolveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	esc, err := h.escrow.Resolve(c.Request().Context(), c.Param("id"), req.Upheld)
	if err != nil {
		h.logger.Error("resolve error", xlogger.String("escrow_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, esc)
}

func (h *EscrowEchoHandler) Release(c echo.Context) error {
	esc, err := h.escrow.Release(c.Request().Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, esc)
}

// WeightCheck screens a measured shipment weight against its declared
// weight and returns the verdict.
func (h *EscrowEchoHandler) WeightCheck(c echo.Context) error {
	req := &models.WeightCheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	dec := h.scorer.ScreenWeight(c.Request().Context(), req.OrderID, req.DeclaredWeight, req.ActualWeight)
	resp := struct {
		Blocked bool                 `json:"blocked"`
		Alerts  []*models.FraudAlert `json:"alerts"`
	}{Blocked: dec.Blocked, Alerts: dec.Alerts}
	return xhttp.SuccessResponse(c, resp)
}
