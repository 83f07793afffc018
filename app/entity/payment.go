package entity

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

type Payment struct {
	ID        string
	OwnerID   string
	FortuneID string

	AmountCents int64
	Currency    string

	Status string

	ExternalIntentID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
