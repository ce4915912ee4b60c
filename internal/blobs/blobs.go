// Package blobs keeps the raw screen captures behind a session's extracted text.
package blobs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store persists capture bytes and returns a stable reference to them.
type Store interface {
	Put(ctx context.Context, sessionID string, content []byte) (string, error)
	Delete(ctx context.Context, ref string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Digest returns the content reference used when no object store is configured.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// DigestStore stores nothing and references captures by content hash.
type DigestStore struct{}

func (DigestStore) Put(_ context.Context, _ string, content []byte) (string, error) {
	return Digest(content), nil
}

func (DigestStore) Delete(context.Context, string) error { return nil }

func (DigestStore) DeleteSession(context.Context, string) error { return nil }

type MinioConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore writes captures to an S3-compatible bucket under sessions/<id>/.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("blob endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("blob bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob client: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket, region: region}, nil
}

// ensureBucket creates the bucket on first use. A failed attempt is retried on the next call.
func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *MinioStore) Put(ctx context.Context, sessionID string, content []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	contentType := http.DetectContentType(content)
	key := ObjectKey(sessionID, content, contentType)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Delete removes the object behind a reference returned by Put. References
// this store did not produce are ignored.
func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	key, ok := s.keyOf(ref)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) keyOf(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, "s3://"+s.bucket+"/")
	if !ok || !strings.HasPrefix(key, "sessions/") {
		return "", false
	}
	return key, true
}

func (s *MinioStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	prefix := sessionPrefix(sessionID)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", obj.Key, err)
		}
	}
	return nil
}

// HealthCheck reports whether the bucket is reachable.
func (s *MinioStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

var imageExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func sessionPrefix(sessionID string) string {
	return "sessions/" + sessionID + "/"
}

// ObjectKey is content-addressed, so re-uploading a capture overwrites itself.
func ObjectKey(sessionID string, content []byte, contentType string) string {
	sum := sha256.Sum256(content)
	ext, ok := imageExt[contentType]
	if !ok {
		ext = ".bin"
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return sessionPrefix(sessionID) + hex.EncodeToString(sum[:]) + ext
}
