package api

import (
	"time"

	"Gavel/internal/domain/models"
	"Gavel/internal/usecase"
	xhttp "Gavel/pkg/http"
	xlogger "Gavel/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BidsEchoHandler is the bid intake surface. Everything funnels through
// the BidProcessor so fraud screening cannot be bypassed.
type BidsEchoHandler struct {
	logger    *xlogger.Logger
	processor *usecase.BidProcessor
}

func NewBidsEchoHandler(logger *xlogger.Logger, processor *usecase.BidProcessor) *BidsEchoHandler {
	return &BidsEchoHandler{logger: logger, processor: processor}
}

func (h *BidsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/auctions/:id")
	g.POST("/bids", h.Submit)
	g.POST("/accept", h.AcceptPrice)
}

func (h *BidsEchoHandler) Submit(c echo.Context) error {
	req := &models.SubmitBidRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bid, err := h.processor.Submit(c.Request().Context(), &usecase.BidSubmission{
		AuctionID: c.Param("id"),
		BidderID:  req.BidderID,
		Amount:    req.Amount,
		Timestamp: time.Now().UTC(),
		SourceIP:  c.RealIP(),
		DeviceID:  req.DeviceID,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.CreatedResponse(c, bid)
}

func (h *BidsEchoHandler) AcceptPrice(c echo.Context) error {
	req := &models.AcceptPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bid, err := h.processor.AcceptCurrentPrice(c.Request().Context(), c.Param("id"), req.BuyerID)
	if err != nil {
		h.logger.Warn("price acceptance rejected",
			xlogger.String("auction_id", c.Param("id")),
			xlogger.String("buyer_id", req.BuyerID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.CreatedResponse(c, bid)
}
