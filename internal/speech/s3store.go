package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config locates the shared pronunciation bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
	Prefix    string
}

// S3Store shares pronunciations between instances through an S3-compatible
// bucket. The bucket is created on the first write if it does not exist.
type S3Store struct {
	client *minio.Client
	cfg    S3Config

	mu    sync.Mutex
	ready bool
}

// NewS3Store builds the client. It does not contact the server.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("speech: s3 endpoint is empty")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("speech: s3 bucket is empty")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "pronunciations"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: init s3 client: %w", err)
	}
	return &S3Store{client: client, cfg: cfg}, nil
}

// Name implements Store.
func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) object(key string) string {
	return path.Join(s.cfg.Prefix, key[:2], key)
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, key string) (*Audio, bool, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, false, fmt.Errorf("read object: %w", err)
	}
	return &Audio{Data: data, MIMEType: info.ContentType}, true, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key string, audio *Audio) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, s.object(key),
		bytes.NewReader(audio.Data), int64(len(audio.Data)),
		minio.PutObjectOptions{
			ContentType:  audio.MIMEType,
			UserMetadata: map[string]string{"cached-at": time.Now().UTC().Format(time.RFC3339)},
		})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region})
		if err != nil && !isAlreadyOwned(err) {
			return fmt.Errorf("create bucket %q: %w", s.cfg.Bucket, err)
		}
	}
	s.ready = true
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func isAlreadyOwned(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
}
