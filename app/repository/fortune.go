package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

var (
	ErrFortuneNotFound      = errors.New("fortune not found")
	ErrFortuneAlreadyExists = errors.New("fortune already exists")
)

const fortuneColumns = `id, owner_id, image_urls, subject_name, subject_age, intent, about,
		prediction, status, payment_id, created_at, updated_at`

type FortuneRepository struct {
	db DBTX
}

func NewFortuneRepository(db DBTX) *FortuneRepository {
	return &FortuneRepository{db: db}
}

func (r *FortuneRepository) Create(ctx context.Context, fortune *entity.Fortune) error {
	imageURLs, err := serializeURLs(fortune.ImageURLs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO fortunes (` + fortuneColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		fortune.ID,
		fortune.OwnerID,
		imageURLs,
		fortune.SubjectName,
		fortune.SubjectAge,
		fortune.Intent,
		nullableStringValue(fortune.About),
		fortune.Prediction,
		fortune.Status,
		nullableStringValue(fortune.PaymentID),
		fortune.CreatedAt,
		fortune.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrFortuneAlreadyExists
		}
		return err
	}

	return nil
}

func (r *FortuneRepository) FindByID(ctx context.Context, id string) (*entity.Fortune, error) {
	query := `
		SELECT ` + fortuneColumns + `
		FROM fortunes
		WHERE id = ?
	`

	fortune := &entity.Fortune{}
	if err := scanFortune(r.db.QueryRowContext(ctx, query, id), fortune); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return fortune, nil
}

func (r *FortuneRepository) ListByOwner(ctx context.Context, ownerID string, limit int32) ([]*entity.Fortune, error) {
	query := `
		SELECT ` + fortuneColumns + `
		FROM fortunes
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fortunes := make([]*entity.Fortune, 0)
	for rows.Next() {
		item := &entity.Fortune{}
		if err := scanFortune(rows, item); err != nil {
			return nil, err
		}
		fortunes = append(fortunes, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return fortunes, nil
}

// MarkProcessing performs the pending -> processing transition as a conditional
// update. It returns false when the stored status is no longer pending, which is
// how a concurrent caller loses the race without invoking the predictor.
func (r *FortuneRepository) MarkProcessing(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE fortunes
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, entity.FortuneStatusProcessing, now, id, entity.FortuneStatusPending)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// CompletePrediction writes the prediction and the completed status in one
// statement, conditional on the row still being in processing. Prediction is
// therefore non-empty exactly when status is completed.
func (r *FortuneRepository) CompletePrediction(ctx context.Context, id string, prediction string, now time.Time) error {
	query := `
		UPDATE fortunes
		SET prediction = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, prediction, entity.FortuneStatusCompleted, now, id, entity.FortuneStatusProcessing)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFortuneNotFound
	}

	return nil
}

func (r *FortuneRepository) MarkFailed(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE fortunes
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, entity.FortuneStatusFailed, now, id, entity.FortuneStatusProcessing)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFortuneNotFound
	}

	return nil
}

func (r *FortuneRepository) SetPaymentID(ctx context.Context, id string, paymentID string, now time.Time) error {
	query := `
		UPDATE fortunes
		SET payment_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, paymentID, now, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFortuneNotFound
	}

	return nil
}

func (r *FortuneRepository) ListStalledProcessing(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Fortune, error) {
	query := `
		SELECT ` + fortuneColumns + `
		FROM fortunes
		WHERE status = ?
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.FortuneStatusProcessing, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fortunes := make([]*entity.Fortune, 0)
	for rows.Next() {
		item := &entity.Fortune{}
		if err := scanFortune(rows, item); err != nil {
			return nil, err
		}
		fortunes = append(fortunes, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return fortunes, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFortune(scan rowScanner, fortune *entity.Fortune) error {
	var imageURLs string
	var about sql.NullString
	var paymentID sql.NullString

	err := scan.Scan(
		&fortune.ID,
		&fortune.OwnerID,
		&imageURLs,
		&fortune.SubjectName,
		&fortune.SubjectAge,
		&fortune.Intent,
		&about,
		&fortune.Prediction,
		&fortune.Status,
		&paymentID,
		&fortune.CreatedAt,
		&fortune.UpdatedAt,
	)
	if err != nil {
		return err
	}

	fortune.About = stringPtrFromNull(about)
	fortune.PaymentID = stringPtrFromNull(paymentID)

	urls, err := parseURLs(imageURLs)
	if err != nil {
		return err
	}
	fortune.ImageURLs = urls

	return nil
}
