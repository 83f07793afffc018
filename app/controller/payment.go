package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/finjan-labs/ms-go-fortunes/app/auth"
	"github.com/finjan-labs/ms-go-fortunes/app/factory"
	"github.com/finjan-labs/ms-go-fortunes/app/service"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) CreatePaymentIntent(ctx echo.Context) error {
	req, err := types.NewCreatePaymentIntentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	principal := auth.PrincipalFromContext(ctx)
	payment, clientSecret, err := c.paymentService.CreatePaymentIntent(ctx.Request().Context(), principal.UserID, req)
	if err != nil {
		return c.writePaymentError(ctx, err, "Create payment intent failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentIntentResponse{
		ClientSecret: clientSecret,
		PaymentID:    payment.ID,
		Amount:       payment.AmountCents,
	})
}

// GetPayment serves the two read shapes on GET /payments: with a session_id
// query it reports that checkout session's status, without one it reports the
// current reading price.
func (c *PaymentController) GetPayment(ctx echo.Context) error {
	sessionID := strings.TrimSpace(ctx.QueryParam("session_id"))
	if sessionID != "" {
		status, err := c.paymentService.GetSessionStatus(ctx.Request().Context(), sessionID)
		if err != nil {
			return c.writePaymentError(ctx, err, "Get session status failed")
		}
		return ctx.JSON(http.StatusOK, &types.SessionStatusResponse{Status: status})
	}

	amount, err := c.paymentService.GetPrice(ctx.Request().Context())
	if err != nil {
		return c.writePaymentError(ctx, err, "Get price failed")
	}

	return ctx.JSON(http.StatusOK, &types.PriceResponse{Amount: amount})
}

func (c *PaymentController) writePaymentError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrProviderUnsupported):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationRequired),
		errors.Is(err, service.ErrUnauthorized):
		return writeError(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrFortuneNotFound):
		return writeError(ctx, http.StatusNotFound, "fortune not found")
	case errors.Is(err, service.ErrPaymentNotFound):
		return writeError(ctx, http.StatusNotFound, "payment not found")
	case errors.Is(err, service.ErrInvalidPrice):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "price is not configured")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
