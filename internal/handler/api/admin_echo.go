package api

import (
	"time"

	"Gavel/internal/domain/models"
	domrepo "Gavel/internal/domain/repository"
	"Gavel/internal/usecase"
	xhttp "Gavel/pkg/http"
	xlogger "Gavel/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdminEchoHandler is the operator surface: flagged-alert triage and
// manual hold maintenance.
type AdminEchoHandler struct {
	logger *xlogger.Logger
	store  domrepo.Store
	ledger *usecase.DepositLedger
}

func NewAdminEchoHandler(logger *xlogger.Logger, store domrepo.Store, ledger *usecase.DepositLedger) *AdminEchoHandler {
	return &AdminEchoHandler{logger: logger, store: store, ledger: ledger}
}

func (h *AdminEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/admin")
	g.GET("/alerts", h.ListAlerts)
	g.POST("/holds/sweep", h.SweepHolds)
}

// ListAlerts returns alerts queued for human review.
func (h *AdminEchoHandler) ListAlerts(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 100)

	var alerts []*models.FraudAlert
	err := h.store.RunInTransaction(c.Request().Context(), func(tx domrepo.Tx) error {
		entities, err := tx.List("alert/")
		if err != nil {
			return err
		}
		for _, e := range entities {
			if a, ok := e.(*models.FraudAlert); ok {
				alerts = append(alerts, a)
			}
		}
		return nil
	})
	if err != nil {
		h.logger.Error("list alerts error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	total := int64(len(alerts))
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return xhttp.ListResponse(c, alerts, total)
}

// SweepHolds releases expired deposit holds immediately instead of
// waiting for the background sweep. An "at" query parameter overrides the
// sweep clock for replay and testing.
func (h *AdminEchoHandler) SweepHolds(c echo.Context) error {
	at := xhttp.ParseTimeDefault(c.QueryParam("at"), time.Now().UTC())
	n, err := h.ledger.SweepExpired(c.Request().Context(), at)
	if err != nil {
		h.logger.Error("hold sweep error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, map[string]int{"released": n})
}
