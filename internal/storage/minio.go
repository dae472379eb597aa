package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/major-recommender/internal/config"
)

// minioStore keeps one object per key under <namespace>/<key>.json.
type minioStore struct {
	client    *minio.Client
	bucket    string
	region    string
	namespace string
	logger    zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig, namespace string, logger zerolog.Logger) (Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &minioStore{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		namespace: namespace,
		logger:    logger,
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ensureCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.ensureBucket(ensureCtx); err != nil {
		return nil, err
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Bool("ssl", cfg.UseSSL).
		Msg("Connected to MinIO")

	return s, nil
}

func (s *minioStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && !exists {
			err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
			if err == nil {
				s.logger.Info().Str("bucket", s.bucket).Msg("Created new bucket")
			}
		}
		if err == nil {
			s.bucketEnsured = true
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("minio not ready: %w", err)
		case <-time.After(backoff):
		}
	}
}

func (s *minioStore) object(key string) string {
	return path.Join(s.namespace, key+".json")
}

func (s *minioStore) Get(ctx context.Context, key string) (string, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return string(raw), true, nil
}

func (s *minioStore) Set(ctx context.Context, key, value string) error {
	info, err := s.client.PutObject(ctx, s.bucket, s.object(key), bytes.NewReader([]byte(value)), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}

	s.logger.Debug().
		Str("key", key).
		Str("etag", info.ETag).
		Int64("size", info.Size).
		Msg("Entry uploaded to MinIO")
	return nil
}

func (s *minioStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		err := s.client.RemoveObject(ctx, s.bucket, s.object(k), minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).StatusCode != http.StatusNotFound {
			return fmt.Errorf("failed to delete %q: %w", k, err)
		}
	}
	return nil
}

func (s *minioStore) Close() error {
	return nil
}
