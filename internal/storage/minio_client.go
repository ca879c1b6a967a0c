package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"network/internal/config"
)

const minioScheme = "minio://"

type MinIOSource struct {
	client *minio.Client
}

func NewMinIOSource(cfg config.MinIO) (*MinIOSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOSource{client: client}, nil
}

// parseObjectRef splits minio://bucket/object/name.
func parseObjectRef(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, minioScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks %s", ErrInvalidRef, ref, minioScheme)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return bucket, object, nil
}

func (m *MinIOSource) Open(ctx context.Context, ref string) (*Photo, error) {
	bucket, object, err := parseObjectRef(ref)
	if err != nil {
		return nil, err
	}

	info, err := m.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", ref, err)
	}

	obj, err := m.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}

	// Stored content types are often missing or generic.
	contentType, r, err := sniff(obj)
	if err != nil {
		obj.Close()
		return nil, err
	}
	if !isImage(contentType) && isImage(info.ContentType) {
		contentType = info.ContentType
	}
	if !isImage(contentType) {
		obj.Close()
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedPhoto, ref, contentType)
	}

	return &Photo{
		Name:        path.Base(object),
		ContentType: contentType,
		Size:        info.Size,
		Reader:      readCloser{Reader: r, Closer: obj},
	}, nil
}
