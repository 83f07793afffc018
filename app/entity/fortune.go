package entity

import "time"

const (
	FortuneStatusPending    = "pending"
	FortuneStatusProcessing = "processing"
	FortuneStatusCompleted  = "completed"
	FortuneStatusFailed     = "failed"
)

// AnonymousOwnerID marks fortunes submitted through the guest checkout
// flow. Anyone who knows the fortune id may read an anonymous-owned record;
// payment, not identity, gates those readings.
const AnonymousOwnerID = "anonymous"

type Fortune struct {
	ID      string
	OwnerID string

	ImageURLs []string

	SubjectName string
	SubjectAge  string
	Intent      string
	About       *string

	Prediction string
	Status     string

	PaymentID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (f *Fortune) Terminal() bool {
	return f.Status == FortuneStatusCompleted || f.Status == FortuneStatusFailed
}

func (f *Fortune) OwnedBy(principalID string) bool {
	return f.OwnerID == principalID || f.OwnerID == AnonymousOwnerID
}
