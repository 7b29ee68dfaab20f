// Package archive keeps a copy of every fetched label image in an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ColaMonitor/internal/config"
	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/ports"
)

// MinioArchive stores label images as <prefix>/<ttbid>/<filename>.
type MinioArchive struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ ports.ImageArchive = (*MinioArchive)(nil)

// NewMinioArchive creates the client; no request is made until first use.
func NewMinioArchive(cfg config.ArchiveConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *MinioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// ObjectName is the key an image of ttbID is stored under.
func (a *MinioArchive) ObjectName(ttbID, filename string) string {
	return path.Join(a.prefix, ttbID, path.Base(filename))
}

// Store uploads one label image.
func (a *MinioArchive) Store(ctx context.Context, ttbID string, image domain.LabelImage) error {
	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, a.bucket, a.ObjectName(ttbID, image.Filename),
		bytes.NewReader(image.Data), int64(len(image.Data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", image.Filename, err)
	}
	return nil
}
