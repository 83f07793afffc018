package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
	"github.com/finjan-labs/ms-go-fortunes/app/provider"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
)

type paymentServiceFixture struct {
	fortunes *serviceFortuneRepo
	payments *servicePaymentRepo
	provider *serviceProvider
	svc      *PaymentService
}

func newPaymentServiceFixture() *paymentServiceFixture {
	f := &paymentServiceFixture{
		fortunes: newServiceFortuneRepo(),
		payments: newServicePaymentRepo(),
		provider: &serviceProvider{price: 500},
	}
	f.svc = NewPaymentService(
		f.payments,
		f.fortunes,
		provider.NewRegistry(f.provider),
		testFortunesConfig(),
		"usd",
		testLogger(),
	)
	return f
}

func pendingFortune(id, ownerID string) *entity.Fortune {
	return &entity.Fortune{
		ID:      id,
		OwnerID: ownerID,
		Status:  entity.FortuneStatusPending,
	}
}

func TestCreatePaymentIntentUsesAuthoritativePrice(t *testing.T) {
	f := newPaymentServiceFixture()
	f.fortunes.put(pendingFortune("fortune-1", "user-1"))

	payment, clientSecret, err := f.svc.CreatePaymentIntent(context.Background(), "user-1", &types.CreatePaymentIntentRequest{
		FortuneID: "fortune-1",
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	if payment.AmountCents != 500 {
		t.Fatalf("amount must come from the price lookup, got %d", payment.AmountCents)
	}
	if payment.Status != entity.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", payment.Status)
	}
	if clientSecret == "" {
		t.Fatal("expected a client secret")
	}
	if payment.ExternalIntentID == nil || *payment.ExternalIntentID == "" {
		t.Fatal("expected external intent id for reconciliation")
	}
}

func TestCreatePaymentIntentZeroPriceRejectedBeforeProviderCall(t *testing.T) {
	f := newPaymentServiceFixture()
	f.provider.price = 0
	f.fortunes.put(pendingFortune("fortune-1", "user-1"))

	_, _, err := f.svc.CreatePaymentIntent(context.Background(), "user-1", &types.CreatePaymentIntentRequest{
		FortuneID: "fortune-1",
	})
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if atomic.LoadInt64(&f.provider.createCalls) != 0 {
		t.Fatalf("provider must not be called for a zero price, calls=%d", f.provider.createCalls)
	}
}

func TestCreatePaymentIntentStampsFortune(t *testing.T) {
	f := newPaymentServiceFixture()
	f.fortunes.put(pendingFortune("fortune-1", "user-1"))

	payment, _, err := f.svc.CreatePaymentIntent(context.Background(), "user-1", &types.CreatePaymentIntentRequest{
		FortuneID: "fortune-1",
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	stored, _ := f.fortunes.FindByID(context.Background(), "fortune-1")
	if stored.PaymentID == nil || *stored.PaymentID != payment.ID {
		t.Fatalf("fortune should carry the payment back-reference, got %+v", stored.PaymentID)
	}
}

func TestCreatePaymentIntentUnknownFortuneIsNotFound(t *testing.T) {
	f := newPaymentServiceFixture()

	_, _, err := f.svc.CreatePaymentIntent(context.Background(), "user-1", &types.CreatePaymentIntentRequest{
		FortuneID: "no-such-id",
	})
	if !errors.Is(err, ErrFortuneNotFound) {
		t.Fatalf("expected ErrFortuneNotFound, got %v", err)
	}
}

func TestCreatePaymentIntentWrongOwnerIsUnauthorized(t *testing.T) {
	f := newPaymentServiceFixture()
	f.fortunes.put(pendingFortune("fortune-1", "user-1"))

	_, _, err := f.svc.CreatePaymentIntent(context.Background(), "user-2", &types.CreatePaymentIntentRequest{
		FortuneID: "fortune-1",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if atomic.LoadInt64(&f.provider.createCalls) != 0 {
		t.Fatalf("provider must not be called for foreign fortunes, calls=%d", f.provider.createCalls)
	}
}

func TestCreatePaymentIntentAlreadyPaidRejected(t *testing.T) {
	f := newPaymentServiceFixture()
	f.fortunes.put(pendingFortune("fortune-1", "user-1"))
	f.payments.put(&entity.Payment{
		ID:        "pay-1",
		OwnerID:   "user-1",
		FortuneID: "fortune-1",
		Status:    entity.PaymentStatusSucceeded,
	})

	_, _, err := f.svc.CreatePaymentIntent(context.Background(), "user-1", &types.CreatePaymentIntentRequest{
		FortuneID: "fortune-1",
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for already-paid fortune, got %v", err)
	}
}

func TestGetPriceRejectsNonPositive(t *testing.T) {
	f := newPaymentServiceFixture()
	f.provider.price = -100

	_, err := f.svc.GetPrice(context.Background())
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestGetSessionStatusRequiresID(t *testing.T) {
	f := newPaymentServiceFixture()

	_, err := f.svc.GetSessionStatus(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
