// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/config"
)

// BlobStore is the external ciphertext store. Only encrypted bytes ever
// cross this boundary.
type BlobStore interface {
	Put(key string, data []byte, contentType string) error
	Fetch(key string) ([]byte, error)
	Delete(key string) error
}

// StorageService stores ciphertext blobs in S3, falling back to a local
// directory when no credentials are configured (development).
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.Storage.AccessKeyID == "" {
		// Local development: filesystem-backed store
		if err := os.MkdirAll(cfg.Storage.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to prepare local blob dir: %w", err)
		}
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Storage.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

func (s *StorageService) Put(key string, data []byte, contentType string) error {
	if s.s3Client == nil {
		return s.putLocal(key, data)
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.Storage.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}

	return nil
}

func (s *StorageService) Fetch(key string) ([]byte, error) {
	if s.s3Client == nil {
		return s.fetchLocal(key)
	}

	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.config.Storage.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%w: blob %s", apperrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}

	return data, nil
}

func (s *StorageService) Delete(key string) error {
	if s.s3Client == nil {
		return os.Remove(s.localPath(key))
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Storage.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}

	return nil
}

func (s *StorageService) localPath(key string) string {
	return filepath.Join(s.config.Storage.LocalDir, filepath.FromSlash(key))
}

func (s *StorageService) putLocal(key string, data []byte) error {
	path := s.localPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: put %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("%w: put %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *StorageService) fetchLocal(key string) ([]byte, error) {
	data, err := os.ReadFile(s.localPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob %s", apperrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", apperrors.ErrStorageUnavailable, key, err)
	}
	return data, nil
}

// GenerateStorageKey builds a collision-free blob locator for one
// manuscript file.
func GenerateStorageKey(manuscriptID uuid.UUID, originalName string) string {
	ext := filepath.Ext(originalName)
	stamp := time.Now().Format("20060102")
	return fmt.Sprintf("manuscripts/%s/%s_%s%s", manuscriptID, stamp, uuid.New().String()[:8], ext)
}
