package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
	"github.com/finjan-labs/ms-go-fortunes/app/provider"
	"github.com/finjan-labs/ms-go-fortunes/app/repository"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
	"github.com/finjan-labs/ms-go-fortunes/config"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByFortuneID(ctx context.Context, fortuneID string) (*entity.Payment, error)
	UpdateStatus(ctx context.Context, id string, status string, now time.Time) error
	ListPendingWithIntent(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type fortuneStampRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Fortune, error)
	SetPaymentID(ctx context.Context, id string, paymentID string, now time.Time) error
}

type PaymentService struct {
	paymentRepo paymentRepository
	fortuneRepo fortuneStampRepository
	providerReg *provider.Registry
	fortunesCfg config.FortunesConfig
	currency    string
	logger      logrus.FieldLogger
}

func NewPaymentService(
	paymentRepo paymentRepository,
	fortuneRepo fortuneStampRepository,
	providerReg *provider.Registry,
	fortunesCfg config.FortunesConfig,
	currency string,
	logger logrus.FieldLogger,
) *PaymentService {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}

	return &PaymentService{
		paymentRepo: paymentRepo,
		fortuneRepo: fortuneRepo,
		providerReg: providerReg,
		fortunesCfg: fortunesCfg,
		currency:    currency,
		logger:      logger,
	}
}

// CreatePaymentIntent creates a provider intent for the fortune at the
// server-resolved price. The request never carries an amount; the price lookup
// is the only authority, and a non-positive price rejects the request before
// the provider is ever called.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, principalID string, req *types.CreatePaymentIntentRequest) (*entity.Payment, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	fortune, err := s.fortuneRepo.FindByID(ctx, req.FortuneID)
	if err != nil {
		return nil, "", err
	}
	if fortune == nil {
		return nil, "", ErrFortuneNotFound
	}
	if !fortune.OwnedBy(principalID) {
		return nil, "", ErrUnauthorized
	}

	existing, err := s.paymentRepo.FindByFortuneID(ctx, fortune.ID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil && existing.Status == entity.PaymentStatusSucceeded {
		return nil, "", fmt.Errorf("%w: fortune is already paid", ErrInvalidRequest)
	}

	providerClient, err := s.providerReg.Get(defaultProviderCode)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, "", ErrProviderUnsupported
		}
		return nil, "", err
	}

	amount, err := providerClient.GetPrice(ctx)
	if err != nil {
		return nil, "", err
	}
	if amount <= 0 {
		return nil, "", ErrInvalidPrice
	}

	intent, err := providerClient.CreateIntent(ctx, &provider.CreateIntentInput{
		AmountCents: amount,
		Currency:    s.currency,
		Metadata: map[string]string{
			"fortune_id": fortune.ID,
			"owner_id":   fortune.OwnerID,
		},
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	externalIntentID := intent.ExternalIntentID
	payment := &entity.Payment{
		ID:               uuid.NewString(),
		OwnerID:          fortune.OwnerID,
		FortuneID:        fortune.ID,
		AmountCents:      amount,
		Currency:         s.currency,
		Status:           entity.PaymentStatusPending,
		ExternalIntentID: &externalIntentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, "", fmt.Errorf("%w: payment already exists", ErrInvalidRequest)
		}
		return nil, "", err
	}

	s.stampFortune(ctx, fortune.ID, payment.ID, now)

	s.logger.WithFields(logrus.Fields{
		"payment_id":   payment.ID,
		"fortune_id":   fortune.ID,
		"amount_cents": amount,
	}).Info("payment intent created")

	return payment, intent.ClientSecret, nil
}

// stampFortune writes the payment back-reference onto the fortune. The stamp
// and the payment row are two independent writes; the stamp is retried once
// and a persistent failure is tolerated because payment lookups fall back to
// the fortune_id column on the payment itself.
func (s *PaymentService) stampFortune(ctx context.Context, fortuneID string, paymentID string, now time.Time) {
	err := s.fortuneRepo.SetPaymentID(ctx, fortuneID, paymentID, now)
	if err == nil {
		return
	}

	if retryErr := s.fortuneRepo.SetPaymentID(ctx, fortuneID, paymentID, now); retryErr != nil {
		s.logger.WithFields(logrus.Fields{
			"fortune_id": fortuneID,
			"payment_id": paymentID,
		}).WithError(retryErr).Warn("failed to stamp payment onto fortune")
	}
}

func (s *PaymentService) GetPrice(ctx context.Context) (int64, error) {
	providerClient, err := s.providerReg.Get(defaultProviderCode)
	if err != nil {
		return 0, err
	}

	amount, err := providerClient.GetPrice(ctx)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidPrice
	}

	return amount, nil
}

func (s *PaymentService) GetSessionStatus(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}

	providerClient, err := s.providerReg.Get(defaultProviderCode)
	if err != nil {
		return "", err
	}

	return providerClient.GetSessionStatus(ctx, strings.TrimSpace(sessionID))
}
