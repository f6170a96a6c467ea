package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"impact-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage names the buckets owned by the impact service.
var Storage = struct {
	FactPacks string
}{
	FactPacks: "impact-fact-packs",
}

const connectTimeout = 10 * time.Second

// MinioClient is the object store used for published fact packs.
type MinioClient struct {
	client *minio.Client
	region string
}

// endpoint strips the scheme from rawURL. An https scheme turns TLS on
// unless MINIO_SECURE says otherwise.
func endpoint(rawURL, secureFlag string) (string, bool) {
	host, secure := rawURL, false
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host, secure = u.Host, u.Scheme == "https"
	}
	if v, err := strconv.ParseBool(secureFlag); err == nil {
		secure = v
	} else if secureFlag != "" {
		slog.Warn("ignoring invalid MINIO_SECURE value", "value", secureFlag)
	}
	return host, secure
}

// NewMinioClient connects and makes sure every service bucket exists.
func NewMinioClient(ctx context.Context, cfg config.MinioConfig) (*MinioClient, error) {
	host, secure := endpoint(cfg.MinioURL, cfg.MinioSecure)

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: secure,
		Region: cfg.MinioLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc := &MinioClient{client: client, region: cfg.MinioLocation}
	for _, bucket := range []string{Storage.FactPacks} {
		if err := mc.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	slog.Info("minio ready", "endpoint", host, "secure", secure)
	return mc, nil
}

func (mc *MinioClient) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := mc.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to reach MinIO bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := mc.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: mc.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	slog.Info("bucket created", "bucket", bucket)
	return nil
}

func (mc *MinioClient) UploadBytes(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := mc.client.PutObject(ctx, bucket, name, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", bucket, name, err)
	}
	return nil
}

// GetBytes reads a whole object. A missing object is found=false, not an
// error.
func (mc *MinioClient) GetBytes(ctx context.Context, bucket, name string) ([]byte, bool, error) {
	obj, err := mc.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", bucket, name, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to stat %s/%s: %w", bucket, name, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", bucket, name, err)
	}
	return data, true, nil
}

func (mc *MinioClient) ListObjectNames(ctx context.Context, bucket, prefix string) ([]string, error) {
	names := []string{}
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
	for obj := range mc.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// Ping is the health check.
func (mc *MinioClient) Ping(ctx context.Context) error {
	_, err := mc.client.BucketExists(ctx, Storage.FactPacks)
	return err
}
