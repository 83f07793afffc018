package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
	"github.com/finjan-labs/ms-go-fortunes/app/identity"
	"github.com/finjan-labs/ms-go-fortunes/app/notifier"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
)

type fortuneReadRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Fortune, error)
}

type EmailService struct {
	fortuneRepo fortuneReadRepository
	identity    identity.Provider
	notifier    notifier.Notifier
	logger      logrus.FieldLogger
}

func NewEmailService(
	fortuneRepo fortuneReadRepository,
	identityProvider identity.Provider,
	readingNotifier notifier.Notifier,
	logger logrus.FieldLogger,
) *EmailService {
	return &EmailService{
		fortuneRepo: fortuneRepo,
		identity:    identityProvider,
		notifier:    readingNotifier,
		logger:      logger,
	}
}

// SendReading emails a completed fortune to its owner. The destination address
// is always resolved through the identity provider; request bodies never carry
// an email address, so a reading cannot be redirected.
func (s *EmailService) SendReading(ctx context.Context, principalID string, req *types.SendReadingRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	if principalID == "" || principalID == entity.AnonymousOwnerID {
		return "", ErrAuthenticationRequired
	}

	fortune, err := s.fortuneRepo.FindByID(ctx, req.FortuneID)
	if err != nil {
		return "", err
	}
	if fortune == nil {
		return "", ErrFortuneNotFound
	}
	if !fortune.OwnedBy(principalID) {
		return "", ErrUnauthorized
	}

	if fortune.Status != entity.FortuneStatusCompleted {
		return "", ErrNotReady
	}

	email, err := s.identity.VerifiedEmail(ctx, principalID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: no verified email on account", ErrInvalidRequest)
	}

	deliveryID, err := s.notifier.SendReading(ctx, email, fortune)
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"fortune_id":  fortune.ID,
		"delivery_id": deliveryID,
	}).Info("reading emailed")

	return deliveryID, nil
}
