package api

import (
	"Gavel/internal/domain/models"
	"Gavel/internal/usecase"
	xhttp "Gavel/pkg/http"
	xlogger "Gavel/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DepositsEchoHandler exposes the deposit ledger: funding, withdrawals and
// balance inspection. Holds are engine-internal and only ever listed, not
// managed, through this surface.
type DepositsEchoHandler struct {
	logger *xlogger.Logger
	ledger *usecase.DepositLedger
}

func NewDepositsEchoHandler(logger *xlogger.Logger, ledger *usecase.DepositLedger) *DepositsEchoHandler {
	return &DepositsEchoHandler{logger: logger, ledger: ledger}
}

func (h *DepositsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/accounts/:id")
	g.POST("/deposits", h.Credit)
	g.POST("/withdrawals", h.Withdraw)
	g.GET("", h.Get)
}

type accountResponse struct {
	Account   *models.DepositAccount `json:"account"`
	Holds     []*models.DepositHold  `json:"holds"`
	Available int64                  `json:"available"`
}

func (h *DepositsEchoHandler) Credit(c echo.Context) error {
	req := &models.CreditRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	acct, err := h.ledger.Credit(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		h.logger.Error("credit error", xlogger.String("account_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, acct)
}

func (h *DepositsEchoHandler) Withdraw(c echo.Context) error {
	req := &models.WithdrawRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	acct, err := h.ledger.Debit(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		h.logger.Error("withdraw error", xlogger.String("account_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, acct)
}

func (h *DepositsEchoHandler) Get(c echo.Context) error {
	acct, holds, available, err := h.ledger.Account(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, &accountResponse{
		Account:   acct,
		Holds:     holds,
		Available: available,
	})
}
