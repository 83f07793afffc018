package provider

import "context"

type CreateIntentInput struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

type CreateIntentOutput struct {
	ExternalIntentID string
	ClientSecret     string
}

// Provider is a hosted payment backend. Amounts always come from GetPrice;
// client-supplied amounts are never forwarded here.
type Provider interface {
	Code() string
	CreateIntent(ctx context.Context, input *CreateIntentInput) (*CreateIntentOutput, error)
	GetIntentStatus(ctx context.Context, externalIntentID string) (string, error)
	GetSessionStatus(ctx context.Context, sessionID string) (string, error)
	GetPrice(ctx context.Context) (int64, error)
}
