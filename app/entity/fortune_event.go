package entity

import "time"

type FortuneEvent struct {
	ID uint64

	FortuneID string

	EventType string

	OldStatus *string
	NewStatus string

	Detail *string

	CreatedAt time.Time
}
