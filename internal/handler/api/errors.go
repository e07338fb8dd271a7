package api

import (
	"errors"

	"Gavel/internal/auctionerrors"
	xhttp "Gavel/pkg/http"
)

// appError maps domain sentinels onto HTTP application errors so clients
// get stable codes instead of raw error strings.
func appError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, auctionerrors.ErrNotFound):
		return xhttp.NotFoundError("resource not found").WithError(err)
	case errors.Is(err, auctionerrors.ErrHoldNotFound):
		return xhttp.NotFoundError("deposit hold not found").WithError(err)
	case errors.Is(err, auctionerrors.ErrAuctionNotActive):
		return xhttp.ConflictError("ERR_AUCTION_NOT_ACTIVE", "auction is not accepting bids").WithError(err)
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return xhttp.UnprocessableError("ERR_BID_TOO_LOW", "amount", "bid below minimum increment").WithError(err)
	case errors.Is(err, auctionerrors.ErrInsufficientDeposit):
		return xhttp.PaymentRequiredError("ERR_INSUFFICIENT_DEPOSIT", "available deposit balance too low").WithError(err)
	case errors.Is(err, auctionerrors.ErrReserveNotMet):
		return xhttp.UnprocessableError("ERR_RESERVE_NOT_MET", "", "reserve price not met").WithError(err)
	case errors.Is(err, auctionerrors.ErrInvalidBid):
		return xhttp.BadRequestError("invalid bid").WithError(err)
	case errors.Is(err, auctionerrors.ErrFraudBlocked):
		return xhttp.ForbiddenError("ERR_FRAUD_BLOCKED", "submission blocked pending review").WithError(err)
	case errors.Is(err, auctionerrors.ErrVelocityExceeded):
		return xhttp.TooManyRequestsError("ERR_RATE_LIMITED", "too many submissions, slow down").WithError(err)
	case errors.Is(err, auctionerrors.ErrNotConfirmed):
		return xhttp.ConflictError("ERR_NOT_CONFIRMED", "delivery not confirmed").WithError(err)
	case errors.Is(err, auctionerrors.ErrDisputeWindowOpen):
		return xhttp.ConflictError("ERR_DISPUTE_WINDOW_OPEN", "dispute window still open").WithError(err)
	case errors.Is(err, auctionerrors.ErrInvalidTransition):
		return xhttp.ConflictError("ERR_INVALID_TRANSITION", "state transition not allowed").WithError(err)
	case errors.Is(err, auctionerrors.ErrConcurrentModification):
		return xhttp.ConflictError("ERR_CONFLICT", "concurrent modification, retry").WithError(err)
	case errors.Is(err, auctionerrors.ErrTimeout):
		return xhttp.ServiceUnavailableError("ERR_TIMEOUT", "auction busy, retry").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
