// Package storage hosts upload artifacts in an S3-compatible object store.
// Most catalog entries only link to an external download URL; this is for
// uploaders who hand us the file itself.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/pkg/logger"
)

type MinIOClient struct {
	client *minio.Client
	bucket string

	// publicHost replaces the internal endpoint in presigned URLs when the
	// store sits behind a different address than clients reach it on.
	publicHost string
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	publicHost := ""
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		publicHost = cfg.PublicEndpoint
	}

	return &MinIOClient{
		client:     client,
		bucket:     cfg.Bucket,
		publicHost: publicHost,
	}, nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIOClient) UploadArtifact(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("artifact_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
			"size":        size,
			"bucket":      m.bucket,
		})
		return err
	}

	logger.Info("artifact_uploaded", map[string]interface{}{
		"object_name": objectName,
		"size":        size,
		"bucket":      m.bucket,
	})
	return nil
}

func (m *MinIOClient) DeleteArtifact(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("artifact_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
	}
	return err
}

// PresignedDownloadURL produces a time-limited direct link to a hosted
// artifact, served with an attachment disposition so browsers download
// rather than render it.
func (m *MinIOClient) PresignedDownloadURL(ctx context.Context, objectName, fileName string, expiry time.Duration) (string, error) {
	query := make(url.Values)
	if fileName != "" {
		query.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}

	urlValue, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, query)
	if err != nil {
		return "", err
	}
	if m.publicHost != "" {
		urlValue.Host = m.publicHost
	}
	return urlValue.String(), nil
}
