package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

func newMock(t *testing.T) (*FortuneRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewFortuneRepository(db), mock
}

func fortuneRows(fortune *entity.Fortune) *sqlmock.Rows {
	imageURLs, _ := serializeURLs(fortune.ImageURLs)
	return sqlmock.NewRows([]string{
		"id", "owner_id", "image_urls", "subject_name", "subject_age", "intent", "about",
		"prediction", "status", "payment_id", "created_at", "updated_at",
	}).AddRow(
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
}

func TestFortuneFindByIDReturnsNilWhenMissing(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT .+ FROM fortunes").
		WithArgs("no-such-id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	fortune, err := repo.FindByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("find by id failed: %v", err)
	}
	if fortune != nil {
		t.Fatalf("expected nil for a missing fortune, got %+v", fortune)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFortuneFindByIDScansImageURLs(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	stored := &entity.Fortune{
		ID:          "fortune-1",
		OwnerID:     "user-1",
		ImageURLs:   []string{"https://objects.example/user-1/a.jpg", "https://objects.example/user-1/b.jpg"},
		SubjectName: "Ana",
		SubjectAge:  "30",
		Intent:      "career",
		Status:      entity.FortuneStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mock.ExpectQuery("SELECT .+ FROM fortunes").
		WithArgs("fortune-1").
		WillReturnRows(fortuneRows(stored))

	fortune, err := repo.FindByID(context.Background(), "fortune-1")
	if err != nil {
		t.Fatalf("find by id failed: %v", err)
	}
	if len(fortune.ImageURLs) != 2 {
		t.Fatalf("expected two image urls, got %v", fortune.ImageURLs)
	}
	if fortune.About != nil {
		t.Fatalf("expected nil about, got %v", *fortune.About)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkProcessingClaimsPendingRow(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE fortunes").
		WithArgs(entity.FortuneStatusProcessing, now, "fortune-1", entity.FortuneStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.MarkProcessing(context.Background(), "fortune-1", now)
	if err != nil {
		t.Fatalf("mark processing failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected the pending row to be claimed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkProcessingLosesRaceWithoutError(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE fortunes").
		WithArgs(entity.FortuneStatusProcessing, now, "fortune-1", entity.FortuneStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.MarkProcessing(context.Background(), "fortune-1", now)
	if err != nil {
		t.Fatalf("losing the claim race must not be an error: %v", err)
	}
	if claimed {
		t.Fatal("expected claimed=false when the row is no longer pending")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompletePredictionRequiresProcessingRow(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE fortunes").
		WithArgs("Good things ahead", entity.FortuneStatusCompleted, now, "fortune-1", entity.FortuneStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompletePrediction(context.Background(), "fortune-1", "Good things ahead", now)
	if err != ErrFortuneNotFound {
		t.Fatalf("expected ErrFortuneNotFound for a non-processing row, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateSerializesImageURLs(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO fortunes").
		WithArgs(
			"fortune-1", "user-1", `["https://objects.example/user-1/a.jpg"]`,
			"Ana", "30", "career", nil, "", entity.FortuneStatusPending, nil, now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &entity.Fortune{
		ID:          "fortune-1",
		OwnerID:     "user-1",
		ImageURLs:   []string{"https://objects.example/user-1/a.jpg"},
		SubjectName: "Ana",
		SubjectAge:  "30",
		Intent:      "career",
		Status:      entity.FortuneStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSerializeAndParseURLs(t *testing.T) {
	raw, err := serializeURLs(nil)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if raw != "[]" {
		t.Fatalf("nil urls should serialize as an empty array, got %q", raw)
	}

	urls, err := parseURLs("")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if urls == nil || len(urls) != 0 {
		t.Fatalf("empty input should parse to an empty slice, got %v", urls)
	}
}
