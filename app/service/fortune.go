package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
	"github.com/finjan-labs/ms-go-fortunes/app/predictor"
	"github.com/finjan-labs/ms-go-fortunes/app/provider"
	"github.com/finjan-labs/ms-go-fortunes/app/storage"
	"github.com/finjan-labs/ms-go-fortunes/app/types"
	"github.com/finjan-labs/ms-go-fortunes/config"
)

const (
	defaultListLimit         = int32(100)
	defaultBatchSize         = int32(100)
	defaultProcessingTimeout = 90 * time.Second

	defaultProviderCode = "stripe"
)

type fortuneRepository interface {
	Create(ctx context.Context, fortune *entity.Fortune) error
	FindByID(ctx context.Context, id string) (*entity.Fortune, error)
	ListByOwner(ctx context.Context, ownerID string, limit int32) ([]*entity.Fortune, error)
	MarkProcessing(ctx context.Context, id string, now time.Time) (bool, error)
	CompletePrediction(ctx context.Context, id string, prediction string, now time.Time) error
	MarkFailed(ctx context.Context, id string, now time.Time) error
	ListStalledProcessing(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Fortune, error)
}

type fortuneEventRepository interface {
	Create(ctx context.Context, event *entity.FortuneEvent) error
}

type paymentLookupRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
	FindByFortuneID(ctx context.Context, fortuneID string) (*entity.Payment, error)
	FindByExternalIntentID(ctx context.Context, externalIntentID string) (*entity.Payment, error)
	UpdateStatus(ctx context.Context, id string, status string, now time.Time) error
}

type FortuneService struct {
	fortuneRepo fortuneRepository
	eventRepo   fortuneEventRepository
	paymentRepo paymentLookupRepository
	objects     storage.ObjectStore
	staging     storage.StagedUploadStore
	predictor   predictor.Predictor
	providerReg *provider.Registry
	fortunesCfg config.FortunesConfig
	logger      logrus.FieldLogger
}

func NewFortuneService(
	fortuneRepo fortuneRepository,
	eventRepo fortuneEventRepository,
	paymentRepo paymentLookupRepository,
	objects storage.ObjectStore,
	staging storage.StagedUploadStore,
	pred predictor.Predictor,
	providerReg *provider.Registry,
	fortunesCfg config.FortunesConfig,
	logger logrus.FieldLogger,
) *FortuneService {
	return &FortuneService{
		fortuneRepo: fortuneRepo,
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		objects:     objects,
		staging:     staging,
		predictor:   pred,
		providerReg: providerReg,
		fortunesCfg: fortunesCfg,
		logger:      logger,
	}
}

// SubmitFortune stores the uploaded images and creates a pending fortune that
// a later process call moves through the lifecycle.
func (s *FortuneService) SubmitFortune(ctx context.Context, principalID string, req *types.SubmitFortuneRequest) (*entity.Fortune, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	imageURLs := make([]string, 0, len(req.Images))
	for _, image := range req.Images {
		data, filename, err := decodeImagePayload(image)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}

		url, err := s.objects.Store(ctx, principalID, data, filename)
		if err != nil {
			return nil, err
		}
		imageURLs = append(imageURLs, url)
	}

	return s.createFortune(ctx, principalID, req, imageURLs)
}

// CreatePendingFortune creates a fortune without attaching images to the
// record. The images are staged with a retention TTL and only uploaded once a
// paid process call arrives, so an abandoned checkout costs nothing.
func (s *FortuneService) CreatePendingFortune(ctx context.Context, principalID string, req *types.SubmitFortuneRequest) (*entity.Fortune, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	fortune, err := s.createFortune(ctx, principalID, req, nil)
	if err != nil {
		return nil, err
	}

	if err := s.staging.Put(ctx, fortune.ID, req.Images); err != nil {
		return nil, err
	}

	return fortune, nil
}

func (s *FortuneService) createFortune(ctx context.Context, principalID string, req *types.SubmitFortuneRequest, imageURLs []string) (*entity.Fortune, error) {
	now := time.Now().UTC()
	fortune := &entity.Fortune{
		ID:          uuid.NewString(),
		OwnerID:     principalID,
		ImageURLs:   imageURLs,
		SubjectName: req.Name,
		SubjectAge:  req.Age,
		Intent:      req.Intent,
		About:       normalizeOptionalString(req.About),
		Status:      entity.FortuneStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.fortuneRepo.Create(ctx, fortune); err != nil {
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.FortuneEvent{
		FortuneID: fortune.ID,
		EventType: "fortune_created",
		NewStatus: fortune.Status,
		CreatedAt: now,
	})

	s.logger.WithFields(logrus.Fields{
		"fortune_id": fortune.ID,
		"owner_id":   fortune.OwnerID,
		"images":     len(imageURLs),
	}).Info("fortune created")

	return fortune, nil
}

// BeginProcessing drives a pending fortune through prediction using the image
// URLs already attached at submission time. Calling it on a terminal fortune
// never re-invokes the predictor.
func (s *FortuneService) BeginProcessing(ctx context.Context, principalID string, fortuneID string) (*entity.Fortune, error) {
	fortune, err := s.loadOwnedFortune(ctx, principalID, fortuneID)
	if err != nil {
		return nil, err
	}

	if fortune.Terminal() || fortune.Status == entity.FortuneStatusProcessing {
		return s.terminalResult(fortune)
	}

	if s.fortunesCfg.RequirePaidProcessing {
		if err := s.requireSucceededPayment(ctx, fortune); err != nil {
			return nil, err
		}
	}

	images := fortune.ImageURLs
	if len(images) == 0 {
		staged, err := s.staging.Get(ctx, fortune.ID)
		if err == storage.ErrStagedUploadNotFound {
			return nil, fmt.Errorf("%w: no images attached to fortune", ErrInvalidRequest)
		} else if err != nil {
			return nil, err
		}
		images = staged
	}

	return s.process(ctx, fortune, images)
}

// ProcessPaid completes the pay-then-create flow: it verifies the fortune's
// payment succeeded, resolves the images (request body first, staged upload as
// fallback) and runs prediction.
func (s *FortuneService) ProcessPaid(ctx context.Context, principalID string, req *types.ProcessPaidFortuneRequest) (*entity.Fortune, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	fortune, err := s.loadOwnedFortune(ctx, principalID, req.FortuneID)
	if err != nil {
		return nil, err
	}

	if fortune.Terminal() || fortune.Status == entity.FortuneStatusProcessing {
		return s.terminalResult(fortune)
	}

	if err := s.verifyPayment(ctx, fortune, req.PaymentIntentID); err != nil {
		return nil, err
	}

	images := req.Images
	if len(images) == 0 {
		staged, err := s.staging.Get(ctx, fortune.ID)
		if err == storage.ErrStagedUploadNotFound {
			return nil, ErrStagedImagesExpired
		} else if err != nil {
			return nil, err
		}
		images = staged
	}

	processed, err := s.process(ctx, fortune, images)
	if err != nil {
		return nil, err
	}

	if err := s.staging.Delete(ctx, fortune.ID); err != nil {
		s.logger.WithField("fortune_id", fortune.ID).WithError(err).Warn("failed to drop staged upload")
	}

	return processed, nil
}

// process performs the pending -> processing -> completed/failed walk. The
// transition into processing is a conditional update, so of two concurrent
// callers exactly one reaches the predictor; the loser re-reads the record and
// reports whatever state the winner produced.
func (s *FortuneService) process(ctx context.Context, fortune *entity.Fortune, images []string) (*entity.Fortune, error) {
	now := time.Now().UTC()

	claimed, err := s.fortuneRepo.MarkProcessing(ctx, fortune.ID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.fortuneRepo.FindByID(ctx, fortune.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrFortuneNotFound
		}
		return s.terminalResult(current)
	}

	oldStatus := fortune.Status
	fortune.Status = entity.FortuneStatusProcessing
	fortune.UpdatedAt = now

	_ = s.eventRepo.Create(ctx, &entity.FortuneEvent{
		FortuneID: fortune.ID,
		EventType: "processing_started",
		OldStatus: &oldStatus,
		NewStatus: fortune.Status,
		CreatedAt: now,
	})

	prediction, err := s.predict(ctx, fortune, images)
	if err != nil {
		s.failFortune(ctx, fortune, err)
		return nil, fmt.Errorf("%w: %s", ErrPredictionFailed, err)
	}

	completedAt := time.Now().UTC()
	if err := s.fortuneRepo.CompletePrediction(ctx, fortune.ID, prediction, completedAt); err != nil {
		return nil, err
	}

	processingStatus := entity.FortuneStatusProcessing
	fortune.Prediction = prediction
	fortune.Status = entity.FortuneStatusCompleted
	fortune.UpdatedAt = completedAt

	_ = s.eventRepo.Create(ctx, &entity.FortuneEvent{
		FortuneID: fortune.ID,
		EventType: "prediction_completed",
		OldStatus: &processingStatus,
		NewStatus: fortune.Status,
		CreatedAt: completedAt,
	})

	s.logger.WithField("fortune_id", fortune.ID).Info("fortune completed")

	return fortune, nil
}

func (s *FortuneService) predict(ctx context.Context, fortune *entity.Fortune, images []string) (string, error) {
	timeout := s.fortunesCfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = defaultProcessingTimeout
	}

	predictCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	about := ""
	if fortune.About != nil {
		about = *fortune.About
	}

	return s.predictor.Predict(predictCtx, &predictor.PredictInput{
		Images:      images,
		SubjectName: fortune.SubjectName,
		SubjectAge:  fortune.SubjectAge,
		Intent:      fortune.Intent,
		About:       about,
	})
}

func (s *FortuneService) failFortune(ctx context.Context, fortune *entity.Fortune, cause error) {
	now := time.Now().UTC()
	if err := s.fortuneRepo.MarkFailed(ctx, fortune.ID, now); err != nil {
		s.logger.WithField("fortune_id", fortune.ID).WithError(err).Error("failed to mark fortune failed")
		return
	}

	processingStatus := entity.FortuneStatusProcessing
	detail := cause.Error()
	fortune.Status = entity.FortuneStatusFailed
	fortune.UpdatedAt = now

	_ = s.eventRepo.Create(ctx, &entity.FortuneEvent{
		FortuneID: fortune.ID,
		EventType: "prediction_failed",
		OldStatus: &processingStatus,
		NewStatus: fortune.Status,
		Detail:    &detail,
		CreatedAt: now,
	})

	s.logger.WithField("fortune_id", fortune.ID).WithError(cause).Warn("fortune failed")
}

// terminalResult maps an already-settled fortune onto the caller-facing
// outcome: completed returns the stored prediction, failed reports the durable
// failure, processing tells the caller to keep polling.
func (s *FortuneService) terminalResult(fortune *entity.Fortune) (*entity.Fortune, error) {
	if fortune.Status == entity.FortuneStatusFailed {
		return nil, ErrPredictionFailed
	}
	return fortune, nil
}

// verifyPayment resolves the fortune's payment and requires a succeeded
// status. A still-pending payment is re-checked against the provider before
// being rejected, which covers confirmations whose status update never landed.
func (s *FortuneService) verifyPayment(ctx context.Context, fortune *entity.Fortune, externalIntentID string) error {
	payment, err := s.resolvePayment(ctx, fortune, externalIntentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return ErrPaymentRequired
	}

	if payment.Status == entity.PaymentStatusSucceeded {
		return nil
	}
	if payment.Status != entity.PaymentStatusPending {
		return ErrPaymentRequired
	}

	if payment.ExternalIntentID == nil || strings.TrimSpace(*payment.ExternalIntentID) == "" {
		return ErrPaymentRequired
	}

	providerClient, err := s.providerReg.Get(defaultProviderCode)
	if err != nil {
		return err
	}

	status, err := providerClient.GetIntentStatus(ctx, strings.TrimSpace(*payment.ExternalIntentID))
	if err != nil {
		return err
	}
	if status == payment.Status {
		return ErrPaymentRequired
	}

	now := time.Now().UTC()
	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, status, now); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"fortune_id": fortune.ID,
		"status":     status,
	}).Info("payment reconciled on read")

	if status != entity.PaymentStatusSucceeded {
		return ErrPaymentRequired
	}
	return nil
}

func (s *FortuneService) resolvePayment(ctx context.Context, fortune *entity.Fortune, externalIntentID string) (*entity.Payment, error) {
	if fortune.PaymentID != nil && strings.TrimSpace(*fortune.PaymentID) != "" {
		payment, err := s.paymentRepo.FindByID(ctx, strings.TrimSpace(*fortune.PaymentID))
		if err != nil || payment != nil {
			return payment, err
		}
	}

	// The payment row carries the fortune back-reference even when the stamp
	// write onto the fortune was lost, so reconciliation goes through it.
	payment, err := s.paymentRepo.FindByFortuneID(ctx, fortune.ID)
	if err != nil || payment != nil {
		return payment, err
	}

	if strings.TrimSpace(externalIntentID) != "" {
		return s.paymentRepo.FindByExternalIntentID(ctx, strings.TrimSpace(externalIntentID))
	}

	return nil, nil
}

func (s *FortuneService) requireSucceededPayment(ctx context.Context, fortune *entity.Fortune) error {
	return s.verifyPayment(ctx, fortune, "")
}

// GetStatus is the polling read. It never mutates the record.
func (s *FortuneService) GetStatus(ctx context.Context, principalID string, fortuneID string) (*entity.Fortune, error) {
	return s.loadOwnedFortune(ctx, principalID, fortuneID)
}

func (s *FortuneService) ListFortunes(ctx context.Context, principalID string) ([]*entity.Fortune, error) {
	if principalID == "" || principalID == entity.AnonymousOwnerID {
		return nil, ErrAuthenticationRequired
	}

	limit := s.fortunesCfg.ListLimit
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.fortuneRepo.ListByOwner(ctx, principalID, limit)
}

func (s *FortuneService) loadOwnedFortune(ctx context.Context, principalID string, fortuneID string) (*entity.Fortune, error) {
	if strings.TrimSpace(fortuneID) == "" {
		return nil, fmt.Errorf("%w: fortuneId is required", ErrInvalidRequest)
	}

	fortune, err := s.fortuneRepo.FindByID(ctx, strings.TrimSpace(fortuneID))
	if err != nil {
		return nil, err
	}
	if fortune == nil {
		return nil, ErrFortuneNotFound
	}
	if !fortune.OwnedBy(principalID) {
		return nil, ErrUnauthorized
	}

	return fortune, nil
}

func (s *FortuneService) batchSize() int32 {
	if s.fortunesCfg.JobBatchSize > 0 {
		return s.fortunesCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// decodeImagePayload accepts either a data: URL or a bare base64 string and
// returns the raw bytes plus a filename with an extension matching the
// declared media type.
func decodeImagePayload(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", errors.New("empty image payload")
	}

	ext := ".jpg"
	encoded := payload
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 {
			return nil, "", errors.New("malformed data url")
		}
		header := payload[len("data:"):comma]
		encoded = payload[comma+1:]

		mediaType := strings.Split(header, ";")[0]
		switch mediaType {
		case "image/png":
			ext = ".png"
		case "image/gif":
			ext = ".gif"
		case "image/webp":
			ext = ".webp"
		case "image/jpeg", "image/jpg", "":
			ext = ".jpg"
		default:
			return nil, "", fmt.Errorf("unsupported image type %q", mediaType)
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.New("image payload is not valid base64")
	}

	return data, "upload" + ext, nil
}
