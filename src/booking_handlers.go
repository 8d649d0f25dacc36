package main

import (
	"bookpay/src/checkout"
	"bookpay/src/ledger"
	"bookpay/src/middlewares"
	"bookpay/src/store"
	"bookpay/src/types"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// paymentView is the client-facing shape of a booking payment.
type paymentView struct {
	ID              uuid.UUID           `json:"id"`
	BookingID       uuid.UUID           `json:"booking_id"`
	Status          types.PaymentStatus `json:"status"`
	PaymentType     types.PaymentType   `json:"payment_type"`
	Amount          string              `json:"amount"`
	DepositAmount   string              `json:"deposit_amount"`
	BalanceAmount   string              `json:"balance_amount"`
	ServiceFee      string              `json:"service_fee"`
	TipAmount       string              `json:"tip_amount"`
	RefundedAmount  string              `json:"refunded_amount"`
	AuthorizedUntil *string             `json:"authorized_until,omitempty"`
	CapturedAt      *string             `json:"captured_at,omitempty"`
}

func newPaymentView(e *ledger.Entry) paymentView {
	v := paymentView{
		ID:             e.ID,
		BookingID:      e.BookingID,
		Status:         e.Status,
		PaymentType:    e.PaymentType,
		Amount:         ledger.FromCents(e.AmountCents).StringFixed(2),
		DepositAmount:  ledger.FromCents(e.DepositCents).StringFixed(2),
		BalanceAmount:  ledger.FromCents(e.BalanceCents).StringFixed(2),
		ServiceFee:     ledger.FromCents(e.ServiceFeeCents).StringFixed(2),
		TipAmount:      ledger.FromCents(e.TipCents).StringFixed(2),
		RefundedAmount: ledger.FromCents(e.RefundedCents).StringFixed(2),
	}
	if e.AuthorizationExpires != nil {
		s := e.AuthorizationExpires.UTC().Format("2006-01-02T15:04:05Z07:00")
		v.AuthorizedUntil = &s
	}
	if e.CapturedAt != nil {
		s := e.CapturedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		v.CapturedAt = &s
	}
	return v
}

func bookingHandlers(g *gin.RouterGroup, svc *checkout.Service) *gin.RouterGroup {
	g.
		POST("/bookings/:id/checkout", func(ctx *gin.Context) {
			bookingID, callerID, ok := bookingRequest(ctx)
			if !ok {
				return
			}
			var body types.CreateCheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			res := svc.CreateBookingPayment(ctx.Request.Context(), checkout.CreatePaymentInput{
				BookingID:  bookingID,
				CustomerID: callerID,
				Method:     types.PaymentMethod(body.PaymentMethod),
				TipCents:   body.Tip,
			})
			respond(ctx, res)
		}).
		GET("/bookings/:id/payment", func(ctx *gin.Context) {
			bookingID, callerID, ok := bookingRequest(ctx)
			if !ok {
				return
			}
			e, err := svc.GetPayment(ctx.Request.Context(), bookingID, callerID)
			if err != nil {
				ctx.JSON(statusFor(err), types.Fail(err))
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": newPaymentView(e)})
		}).
		POST("/bookings/:id/refund", func(ctx *gin.Context) {
			bookingID, callerID, ok := bookingRequest(ctx)
			if !ok {
				return
			}
			var body types.RefundRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			respond(ctx, svc.RefundBooking(ctx.Request.Context(), checkout.RefundInput{
				BookingID:   bookingID,
				ActorID:     callerID,
				AmountCents: body.Amount,
				Reason:      body.Reason,
			}))
		}).
		POST("/bookings/:id/tip", func(ctx *gin.Context) {
			bookingID, callerID, ok := bookingRequest(ctx)
			if !ok {
				return
			}
			var body types.TipRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			respond(ctx, svc.AddTip(ctx.Request.Context(), checkout.TipInput{
				BookingID:   bookingID,
				CustomerID:  callerID,
				AmountCents: body.Amount,
			}))
		}).
		POST("/bookings/:id/cancel", func(ctx *gin.Context) {
			bookingID, callerID, ok := bookingRequest(ctx)
			if !ok {
				return
			}
			var body types.CancelBookingRequestBody
			if ctx.Request.ContentLength != 0 {
				if err := ctx.ShouldBindJSON(&body); err != nil {
					badRequest(ctx, err)
					return
				}
			}
			respond(ctx, svc.CancelBooking(ctx.Request.Context(), checkout.CancelInput{
				BookingID:            bookingID,
				ActorID:              callerID,
				CancellationFeeCents: body.CancellationFee,
			}))
		})
	return g
}

// bookingRequest reads the booking id from the path and the caller from the
// token. It writes the error response itself.
func bookingRequest(ctx *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	var params types.BookingURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		badRequest(ctx, err)
		return uuid.Nil, uuid.Nil, false
	}
	callerID, ok := middlewares.CallerID(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	return uuid.MustParse(params.ID), callerID, true
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, types.Fail(err))
}

func respond(ctx *gin.Context, res types.Result) {
	if !res.Success {
		ctx.JSON(http.StatusBadRequest, res)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, checkout.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrSessionClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}
