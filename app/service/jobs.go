package service

import (
	"context"
	"strings"
	"time"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

// RunExpireStalledBatch fails fortunes stuck in processing longer than the
// configured stall window. A crash between MarkProcessing and the prediction
// result would otherwise leave the record in processing forever and the
// polling client spinning.
func (s *FortuneService) RunExpireStalledBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.fortunesCfg.ProcessingStaleAfter)

	items, err := s.fortuneRepo.ListStalledProcessing(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, fortune := range items {
		if fortune == nil {
			continue
		}

		if err := s.fortuneRepo.MarkFailed(ctx, fortune.ID, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		processingStatus := entity.FortuneStatusProcessing
		detail := "processing stalled past deadline"
		_ = s.eventRepo.Create(ctx, &entity.FortuneEvent{
			FortuneID: fortune.ID,
			EventType: "processing_expired",
			OldStatus: &processingStatus,
			NewStatus: entity.FortuneStatusFailed,
			Detail:    &detail,
			CreatedAt: now,
		})

		s.logger.WithField("fortune_id", fortune.ID).Warn("stalled fortune expired")
	}

	return firstErr
}

// RunReconcilePaymentsBatch re-checks stale pending payments against the
// provider and records any status the confirmation flow failed to land.
func (s *PaymentService) RunReconcilePaymentsBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.fortunesCfg.ReconcileStaleAfter)

	items, err := s.paymentRepo.ListPendingWithIntent(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	providerClient, err := s.providerReg.Get(defaultProviderCode)
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.ExternalIntentID == nil || strings.TrimSpace(*payment.ExternalIntentID) == "" {
			continue
		}

		status, err := providerClient.GetIntentStatus(ctx, strings.TrimSpace(*payment.ExternalIntentID))
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if status == "" || status == payment.Status {
			continue
		}

		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, status, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		s.logger.WithField("payment_id", payment.ID).WithField("status", status).Info("payment reconciled")
	}

	return firstErr
}

func (s *PaymentService) batchSize() int32 {
	if s.fortunesCfg.JobBatchSize > 0 {
		return s.fortunesCfg.JobBatchSize
	}
	return defaultBatchSize
}

func keepFirstErr(current, next error) error {
	if current != nil {
		return current
	}
	return next
}
