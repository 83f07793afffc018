package service

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrFortuneNotFound        = errors.New("fortune not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentRequired        = errors.New("payment required")
	ErrPredictionFailed       = errors.New("prediction failed")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrNotReady               = errors.New("fortune is not ready")
	ErrStagedImagesExpired    = errors.New("staged images expired")
	ErrProviderUnsupported    = errors.New("provider is not supported")
)
