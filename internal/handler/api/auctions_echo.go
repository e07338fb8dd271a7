package api

import (
	"time"

	"Gavel/internal/domain/models"
	"Gavel/internal/usecase"
	pkgcache "Gavel/pkg/cache"
	xhttp "Gavel/pkg/http"
	xlogger "Gavel/pkg/logger"

	"github.com/labstack/echo/v4"
)

// snapshotTTL bounds how stale a cached auction read may be.
const snapshotTTL = time.Second

// AuctionsEchoHandler exposes auction lifecycle operations over HTTP.
// Snapshot reads go through a short-TTL cache so hot auctions don't
// occupy their machine's command queue with reads.
type AuctionsEchoHandler struct {
	logger   *xlogger.Logger
	registry *usecase.Registry
	cache    pkgcache.Service
}

func NewAuctionsEchoHandler(logger *xlogger.Logger, registry *usecase.Registry, cache pkgcache.Service) *AuctionsEchoHandler {
	return &AuctionsEchoHandler{logger: logger, registry: registry, cache: cache}
}

func (h *AuctionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/auctions")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.POST("/:id/activate", h.Activate)
	g.POST("/:id/suspend", h.Suspend)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/close", h.Close)
	g.POST("/:id/reveal", h.Reveal)
	g.POST("/:id/live", h.LiveOp)
}

func (h *AuctionsEchoHandler) Create(c echo.Context) error {
	req := &models.CreateAuctionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a := &models.Auction{
		Title:           req.Title,
		SellerID:        req.SellerID,
		Format:          models.Format(req.Format),
		StartingPrice:   req.StartingPrice,
		ReservePrice:    req.ReservePrice,
		BuyNowPrice:     req.BuyNowPrice,
		BidIncrement:    req.BidIncrement,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		ExtensionWindow: time.Duration(req.ExtensionWindowSec) * time.Second,
		MaxExtensions:   req.MaxExtensions,
		FloorPrice:      req.FloorPrice,
		DecayStep:       req.DecayStep,
		DecayInterval:   time.Duration(req.DecayIntervalSec) * time.Second,
		RevealTime:      req.RevealTime,
		LotCount:        req.LotCount,
	}

	created, err := h.registry.CreateAuction(c.Request().Context(), a)
	if err != nil {
		h.logger.Error("create auction error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.CreatedResponse(c, created)
}

func (h *AuctionsEchoHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	key := pkgcache.GenerateKey("auction_snapshot", c.Param("id"))

	if h.cache != nil {
		var cached models.Auction
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	a, err := h.registry.Machine(c.Param("id")).Snapshot(ctx)
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, a, snapshotTTL); err != nil {
			h.logger.Debug("snapshot cache set failed", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *AuctionsEchoHandler) Activate(c echo.Context) error {
	if err := h.registry.Machine(c.Param("id")).Activate(c.Request().Context()); err != nil {
		h.logger.Error("activate error", xlogger.String("auction_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *AuctionsEchoHandler) Suspend(c echo.Context) error {
	if err := h.registry.Machine(c.Param("id")).Suspend(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *AuctionsEchoHandler) Cancel(c echo.Context) error {
	if err := h.registry.Machine(c.Param("id")).Cancel(c.Request().Context()); err != nil {
		h.logger.Error("cancel error", xlogger.String("auction_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *AuctionsEchoHandler) Close(c echo.Context) error {
	if err := h.registry.Machine(c.Param("id")).CloseAuction(c.Request().Context(), time.Now().UTC()); err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *AuctionsEchoHandler) Reveal(c echo.Context) error {
	winner, err := h.registry.Machine(c.Param("id")).Reveal(c.Request().Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("reveal error", xlogger.String("auction_id", c.Param("id")), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, winner)
}

func (h *AuctionsEchoHandler) LiveOp(c echo.Context) error {
	req := &models.LiveOpRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	lot, err := h.registry.Machine(c.Param("id")).ApplyLiveOp(c.Request().Context(), usecase.LiveOp(req.Op), time.Now().UTC())
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, lot)
}
