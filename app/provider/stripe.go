package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

const stripeAPIBaseURL = "https://api.stripe.com"

type StripeConfig struct {
	SecretKey         string
	PriceID           string
	DefaultPriceCents int64
	Currency          string
	HTTPTimeout       time.Duration

	// APIBaseURL overrides the Stripe endpoint, used by tests.
	APIBaseURL string
}

type StripeProvider struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = stripeAPIBaseURL
	}
	if cfg.DefaultPriceCents <= 0 {
		cfg.DefaultPriceCents = 500
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "usd"
	}

	return &StripeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *StripeProvider) Code() string {
	return "stripe"
}

func (p *StripeProvider) CreateIntent(ctx context.Context, input *CreateIntentInput) (*CreateIntentOutput, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}
	if input.AmountCents <= 0 {
		return nil, errors.New("amount must be greater than zero")
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(input.AmountCents, 10))
	values.Set("currency", strings.ToLower(input.Currency))
	values.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := p.postForm(ctx, "/v1/payment_intents", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ClientSecret) == "" {
		return nil, errors.New("stripe payment intent missing client secret")
	}

	return &CreateIntentOutput{
		ExternalIntentID: strings.TrimSpace(payload.ID),
		ClientSecret:     strings.TrimSpace(payload.ClientSecret),
	}, nil
}

func (p *StripeProvider) GetIntentStatus(ctx context.Context, externalIntentID string) (string, error) {
	if strings.TrimSpace(externalIntentID) == "" {
		return "", nil
	}

	body, err := p.get(ctx, "/v1/payment_intents/"+url.PathEscape(externalIntentID))
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	switch payload.Status {
	case "succeeded":
		return entity.PaymentStatusSucceeded, nil
	case "canceled":
		return entity.PaymentStatusFailed, nil
	case "requires_payment_method", "requires_confirmation", "requires_action", "processing":
		return entity.PaymentStatusPending, nil
	default:
		return "", nil
	}
}

func (p *StripeProvider) GetSessionStatus(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("session id is required")
	}

	body, err := p.get(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID))
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	return payload.Status, nil
}

// GetPrice resolves the authoritative reading price. A missing price id or a
// lookup failure falls back to the configured default, matching the billing
// setup where the price object is optional in non-production environments.
func (p *StripeProvider) GetPrice(ctx context.Context) (int64, error) {
	if strings.TrimSpace(p.cfg.PriceID) == "" {
		return p.cfg.DefaultPriceCents, nil
	}

	body, err := p.get(ctx, "/v1/prices/"+url.PathEscape(p.cfg.PriceID))
	if err != nil {
		return p.cfg.DefaultPriceCents, nil
	}

	var payload struct {
		UnitAmount int64 `json:"unit_amount"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return p.cfg.DefaultPriceCents, nil
	}
	if payload.UnitAmount <= 0 {
		return p.cfg.DefaultPriceCents, nil
	}

	return payload.UnitAmount, nil
}

func (p *StripeProvider) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.do(req, path)
}

func (p *StripeProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	return p.do(req, path)
}

func (p *StripeProvider) do(req *http.Request, path string) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
