package repository

import (
	"context"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

type FortuneEventRepository struct {
	db DBTX
}

func NewFortuneEventRepository(db DBTX) *FortuneEventRepository {
	return &FortuneEventRepository{db: db}
}

func (r *FortuneEventRepository) Create(ctx context.Context, event *entity.FortuneEvent) error {
	query := `
		INSERT INTO fortune_events (fortune_id, event_type, old_status, new_status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.FortuneID,
		event.EventType,
		nullableStringValue(event.OldStatus),
		event.NewStatus,
		nullableStringValue(event.Detail),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}
