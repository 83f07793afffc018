package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStagedUploadNotFound is returned when a staging key is absent, either
// because nothing was staged or because the retention TTL elapsed.
var ErrStagedUploadNotFound = errors.New("staged upload not found")

// StagedUploadStore holds pay-then-create images between submission and
// payment confirmation. Entries expire after the configured TTL, so an
// abandoned checkout never leaves image data behind.
type StagedUploadStore interface {
	Put(ctx context.Context, fortuneID string, images []string) error
	Get(ctx context.Context, fortuneID string) ([]string, error)
	Delete(ctx context.Context, fortuneID string) error
}

type RedisStagingConfig struct {
	TTL time.Duration
}

type RedisStagedUploadStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStagedUploadStore(rdb *redis.Client, cfg RedisStagingConfig) *RedisStagedUploadStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStagedUploadStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStagedUploadStore) Put(ctx context.Context, fortuneID string, images []string) error {
	payload, err := json.Marshal(images)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stagingKey(fortuneID), payload, s.ttl).Err()
}

func (s *RedisStagedUploadStore) Get(ctx context.Context, fortuneID string) ([]string, error) {
	raw, err := s.rdb.Get(ctx, stagingKey(fortuneID)).Result()
	if err == redis.Nil {
		return nil, ErrStagedUploadNotFound
	}
	if err != nil {
		return nil, err
	}

	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *RedisStagedUploadStore) Delete(ctx context.Context, fortuneID string) error {
	return s.rdb.Del(ctx, stagingKey(fortuneID)).Err()
}

func stagingKey(fortuneID string) string {
	return "fortunes:staged:" + fortuneID
}
