package notifier

import (
	"context"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

type Notifier interface {
	SendReading(ctx context.Context, email string, fortune *entity.Fortune) (string, error)
}
