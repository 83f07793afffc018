package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/finjan-labs/ms-go-fortunes/app/auth"
	"github.com/finjan-labs/ms-go-fortunes/app/factory"
	"github.com/finjan-labs/ms-go-fortunes/app/mapper"
	"github.com/finjan-labs/ms-go-fortunes/app/service"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
)

type FortuneController struct {
	fortuneService *service.FortuneService
	emailService   *service.EmailService
	logger         logrus.FieldLogger
}

func NewFortuneController(fortuneService *service.FortuneService, emailService *service.EmailService) *FortuneController {
	return &FortuneController{
		fortuneService: fortuneService,
		emailService:   emailService,
		logger:         factory.NewModuleLogger("fortunes-controller"),
	}
}

func (c *FortuneController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *FortuneController) SubmitFortune(ctx echo.Context) error {
	req, err := types.NewSubmitFortuneRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	principal := auth.PrincipalFromContext(ctx)
	item, err := c.fortuneService.SubmitFortune(ctx.Request().Context(), principal.UserID, req)
	if err != nil {
		return c.writeFortuneError(ctx, err, "Submit fortune failed")
	}

	return ctx.JSON(http.StatusOK, &types.SubmitFortuneResponse{
		Message:   "Fortune submitted",
		FortuneID: item.ID,
		Status:    item.Status,
	})
}

func (c *FortuneController) CreatePendingFortune(ctx echo.Context) error {
	req, err := types.NewSubmitFortuneRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	principal := auth.PrincipalFromContext(ctx)
	item, err := c.fortuneService.CreatePendingFortune(ctx.Request().Context(), principal.UserID, req)
	if err != nil {
		return c.writeFortuneError(ctx, err, "Create pending fortune failed")
	}

	return ctx.JSON(http.StatusOK, &types.SubmitFortuneResponse{
		Message:   "Fortune created",
		FortuneID: item.ID,
		Status:    item.Status,
	})
}

func (c *FortuneController) ProcessFortune(ctx echo.Context) error {
	req, err := types.NewProcessFortuneRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	principal := auth.PrincipalFromContext(ctx)
	item, err := c.fortuneService.BeginProcessing(ctx.Request().Context(), principal.UserID, req.FortuneID)
	if err != nil {
		return c.writeFortuneError(ctx, err, "Process fortune failed")
	}

	return ctx.JSON(http.StatusOK, &types.PredictionResponse{
		FortuneID:  item.ID,
		Prediction: item.Prediction,
	})
}

func (c *FortuneController) ProcessPaidFortune(ctx echo.Context) error {
	req, err := types.NewProcessPaidFortuneRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	principal := auth.PrincipalFromContext(ctx)
	item, err := c.fortuneService.ProcessPaid(ctx.Request().Context(), principal.UserID, req)
	if err != nil {
		return c.writeFortuneError(ctx, err, "Process paid fortune failed")
	}

	return ctx.JSON(http.StatusOK, &types.PredictionResponse{
		FortuneID:  item.ID,
		Prediction: item.Prediction,
	})
}

func (c *FortuneController) GetFortuneStatus(ctx echo.Context) error {
	req, err := types.NewFortuneStatusRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	principal := auth.PrincipalFromContext(ctx)
	item, err := c.fortuneService.GetStatus(ctx.Request().Context(), principal.UserID, req.FortuneID)
	if err != nil {
		return c.writeFortuneError(ctx, err, "Get fortune status failed")
	}

	return ctx.JSON(http.StatusOK, mapper.FortuneToStatusResponse(item))
}

func (c *FortuneController) ListFortunes(ctx echo.Context) error {
	principal := auth.PrincipalFromContext(ctx)
	items, err := c.fortuneService.ListFortunes(ctx.Request().Context(), principal.UserID)
	if err != nil {
		return c.writeFortuneError(ctx, err, "List fortunes failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListFortunesResponse{Fortunes: mapper.FortunesToResponse(items)})
}

func (c *FortuneController) SendReading(ctx echo.Context) error {
	req, err := types.NewSendReadingRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	principal := auth.PrincipalFromContext(ctx)
	deliveryID, err := c.emailService.SendReading(ctx.Request().Context(), principal.UserID, req)
	if err != nil {
		return c.writeFortuneError(ctx, err, "Send reading failed")
	}

	return ctx.JSON(http.StatusOK, &types.SendReadingResponse{
		Message: "Reading sent",
		EmailID: deliveryID,
	})
}

// writeFortuneError maps service sentinels onto the boundary contract: 400 for
// malformed or premature requests, 401 for both a missing principal and a
// wrong owner, 404 for unknown ids, 500 for upstream failures.
func (c *FortuneController) writeFortuneError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrNotReady),
		errors.Is(err, service.ErrStagedImagesExpired),
		errors.Is(err, service.ErrPaymentRequired):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationRequired),
		errors.Is(err, service.ErrUnauthorized):
		return writeError(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrFortuneNotFound):
		return writeError(ctx, http.StatusNotFound, "fortune not found")
	case errors.Is(err, service.ErrPredictionFailed):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "prediction failed")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
