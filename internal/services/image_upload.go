package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"quill/internal/config"
)

const MaxImageSize = 10 << 20

var (
	ErrNotImage      = errors.New("upload a valid image")
	ErrImageTooLarge = errors.New("image must be 10 MB or smaller")
)

// ImageStore persists post images and returns the reference stored on the
// post, a URL the templates can use directly.
type ImageStore interface {
	Save(ctx context.Context, postID uuid.UUID, header *multipart.FileHeader) (string, error)
}

// readImage loads the upload into memory after checking size and type.
func readImage(header *multipart.FileHeader) ([]byte, string, error) {
	if header.Size > MaxImageSize {
		return nil, "", ErrImageTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, "", ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", ErrNotImage
	}
	return data, contentType, nil
}

func imageKey(postID uuid.UUID, filename string) string {
	name := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if slug := slugFileName(base); slug != "" {
		base = slug
	} else {
		base = "image"
	}
	return path.Join("posts", postID.String(), base+ext)
}

func slugFileName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// LocalImageStore writes images under a directory served by the app.
type LocalImageStore struct {
	root      string
	urlPrefix string
}

func NewLocalImageStore(cfg config.MediaConfig) *LocalImageStore {
	return &LocalImageStore{root: cfg.Root, urlPrefix: strings.TrimRight(cfg.URLPrefix, "/")}
}

func (s *LocalImageStore) Save(ctx context.Context, postID uuid.UUID, header *multipart.FileHeader) (string, error) {
	data, _, err := readImage(header)
	if err != nil {
		return "", err
	}

	key := imageKey(postID, header.Filename)
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return s.urlPrefix + "/" + key, nil
}

// MinIOImageStore uploads images to an S3-compatible bucket.
type MinIOImageStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOImageStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &MinIOImageStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOImageStore) Save(ctx context.Context, postID uuid.UUID, header *multipart.FileHeader) (string, error) {
	data, contentType, err := readImage(header)
	if err != nil {
		return "", err
	}

	key := imageKey(postID, header.Filename)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}
	return s.client.EndpointURL().String() + "/" + s.bucket + "/" + key, nil
}
