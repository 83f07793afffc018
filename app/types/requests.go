package types

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

type SubmitFortuneRequest struct {
	Images []string `json:"images" validate:"required,min=1,max=4,dive,required"`
	Name   string   `json:"name" validate:"required"`
	Age    string   `json:"age" validate:"required"`
	Intent string   `json:"intent" validate:"required"`
	About  string   `json:"about"`
}

func NewSubmitFortuneRequestFromContext(ctx echo.Context) (*SubmitFortuneRequest, error) {
	var body SubmitFortuneRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Age = strings.TrimSpace(body.Age)
	body.Intent = strings.TrimSpace(body.Intent)
	body.About = strings.TrimSpace(body.About)

	return &body, nil
}

func (r *SubmitFortuneRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		if len(r.Images) == 0 {
			return errors.New("at least one image is required")
		}
		if len(r.Images) > 4 {
			return errors.New("at most four images are allowed")
		}
		return errors.New("name, age and intent are required")
	}
	return nil
}

type ProcessFortuneRequest struct {
	FortuneID string `json:"fortuneId"`
}

func NewProcessFortuneRequestFromContext(ctx echo.Context) (*ProcessFortuneRequest, error) {
	var body ProcessFortuneRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.FortuneID = strings.TrimSpace(body.FortuneID)
	return &body, nil
}

func (r *ProcessFortuneRequest) Validate() error {
	if r.FortuneID == "" {
		return errors.New("fortuneId is required")
	}
	return nil
}

type ProcessPaidFortuneRequest struct {
	FortuneID       string   `json:"fortuneId"`
	PaymentIntentID string   `json:"paymentIntentId"`
	Images          []string `json:"images"`
}

func NewProcessPaidFortuneRequestFromContext(ctx echo.Context) (*ProcessPaidFortuneRequest, error) {
	var body ProcessPaidFortuneRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.FortuneID = strings.TrimSpace(body.FortuneID)
	body.PaymentIntentID = strings.TrimSpace(body.PaymentIntentID)
	return &body, nil
}

func (r *ProcessPaidFortuneRequest) Validate() error {
	if r.FortuneID == "" {
		return errors.New("fortuneId is required")
	}
	if len(r.Images) > 4 {
		return errors.New("at most four images are allowed")
	}
	return nil
}

type FortuneStatusRequest struct {
	FortuneID string
}

func NewFortuneStatusRequestFromContext(ctx echo.Context) (*FortuneStatusRequest, error) {
	return &FortuneStatusRequest{
		FortuneID: strings.TrimSpace(ctx.QueryParam("fortuneId")),
	}, nil
}

func (r *FortuneStatusRequest) Validate() error {
	if r.FortuneID == "" {
		return errors.New("fortuneId is required")
	}
	return nil
}

type CreatePaymentIntentRequest struct {
	FortuneID string `json:"fortuneId"`
}

func NewCreatePaymentIntentRequestFromContext(ctx echo.Context) (*CreatePaymentIntentRequest, error) {
	var body CreatePaymentIntentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.FortuneID = strings.TrimSpace(body.FortuneID)
	return &body, nil
}

func (r *CreatePaymentIntentRequest) Validate() error {
	if r.FortuneID == "" {
		return errors.New("fortuneId is required")
	}
	return nil
}

type SendReadingRequest struct {
	FortuneID string `json:"fortuneId"`
}

func NewSendReadingRequestFromContext(ctx echo.Context) (*SendReadingRequest, error) {
	var body SendReadingRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.FortuneID = strings.TrimSpace(body.FortuneID)
	return &body, nil
}

func (r *SendReadingRequest) Validate() error {
	if r.FortuneID == "" {
		return errors.New("fortuneId is required")
	}
	return nil
}
