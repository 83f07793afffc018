package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	maxUploadSizeBytes = 5 * 1024 * 1024
	maxImageWidth      = 1024
)

type GCSConfig struct {
	Bucket        string
	PublicBaseURL string
}

type GCSObjectStore struct {
	cfg    GCSConfig
	client *gcs.Client
}

func NewGCSObjectStore(ctx context.Context, cfg GCSConfig) (*GCSObjectStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &GCSObjectStore{cfg: cfg, client: client}, nil
}

// Store normalizes the image (decode, cap width, re-encode JPEG) and writes it
// under an owner-scoped object key.
func (s *GCSObjectStore) Store(ctx context.Context, ownerID string, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("image data is empty")
	}
	if len(data) > maxUploadSizeBytes {
		return "", errors.New("image exceeds 5MB limit")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > maxImageWidth {
		img = imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	objectKey := buildObjectKey(ownerID, filename)

	writer := s.client.Bucket(s.cfg.Bucket).Object(objectKey).NewWriter(ctx)
	writer.ContentType = "image/jpeg"
	if _, err := writer.Write(buf.Bytes()); err != nil {
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	return s.objectURL(objectKey), nil
}

func (s *GCSObjectStore) Delete(ctx context.Context, objectURL string) error {
	objectKey := s.objectKeyFromURL(objectURL)
	if objectKey == "" {
		return errors.New("object url does not belong to this store")
	}
	return s.client.Bucket(s.cfg.Bucket).Object(objectKey).Delete(ctx)
}

func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}

func (s *GCSObjectStore) objectURL(objectKey string) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.PublicBaseURL), "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + s.cfg.Bucket
	}
	return base + "/" + objectKey
}

func (s *GCSObjectStore) objectKeyFromURL(objectURL string) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.PublicBaseURL), "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + s.cfg.Bucket
	}
	if !strings.HasPrefix(objectURL, base+"/") {
		return ""
	}
	return strings.TrimPrefix(objectURL, base+"/")
}

func buildObjectKey(ownerID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return path.Join(ownerID, "fortunes", uuid.NewString()+ext)
}
