// Package media stores equipment images in S3-compatible object storage and
// hands out presigned URLs so browsers talk to the bucket directly.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultExpiry is how long presigned URLs stay valid.
const DefaultExpiry = 15 * time.Minute

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("media storage not configured")

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Expiry    time.Duration
}

type presigner interface {
	PresignPutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type deleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store issues presigned URLs for equipment images.
type Store struct {
	bucket  string
	expiry  time.Duration
	presign presigner
	client  deleter
}

// New returns a Store, or a disabled Store when the bucket or credentials
// are missing.
func New(cfg Config) *Store {
	s := &Store{bucket: cfg.Bucket, expiry: cfg.Expiry}
	if s.expiry <= 0 {
		s.expiry = DefaultExpiry
	}
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return s
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	client := s3.New(opts)
	s.client = client
	s.presign = s3.NewPresignClient(client)
	return s
}

// Enabled reports whether object storage is configured.
func (s *Store) Enabled() bool {
	return s.presign != nil
}

// Upload is a presigned PUT for a new image.
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadURL presigns a PUT for a fresh object key under the equipment's prefix.
func (s *Store) UploadURL(ctx context.Context, equipmentID, contentType string) (*Upload, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	key := path.Join("equipment", equipmentID, uuid.NewString()+extension(contentType))

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: time.Now().UTC().Add(s.expiry),
	}, nil
}

// ImageURL resolves a stored image key to a URL the browser can fetch.
// Keys that are already absolute URLs are returned unchanged.
func (s *Store) ImageURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	if !s.Enabled() {
		return "", ErrDisabled
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// Delete removes an image object. Absolute URLs are not ours and are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" || strings.Contains(key, "://") {
		return nil
	}
	if s.client == nil {
		return ErrDisabled
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
