// Package publish uploads artifact archives to an S3-compatible object
// store under their content-addressed keys.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lex00/wetwire-lambda-go/internal/bundle"
	"github.com/lex00/wetwire-lambda-go/internal/config"
)

// digestMetadata is the user metadata key carrying the artifact digest.
const digestMetadata = "Wetwire-Digest"

// objectAPI is the subset of *minio.Client the publisher uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Upload reports the outcome of publishing one artifact.
type Upload struct {
	Function string `json:"function,omitempty"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	// Skipped is true when the object already existed.
	Skipped bool `json:"skipped"`
}

// Publisher uploads artifacts to one bucket.
type Publisher struct {
	api    objectAPI
	bucket string
	region string
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
}

// New connects to the store described by cfg. Without static keys the
// standard AWS environment credentials are used.
func New(cfg config.S3Config, bucket string, logger *slog.Logger) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("asset bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newPublisher(client, bucket, region, logger), nil
}

func newPublisher(api objectAPI, bucket, region string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{api: api, bucket: bucket, region: region, logger: logger}
}

// Bucket returns the target bucket name.
func (p *Publisher) Bucket() string {
	return p.bucket
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.api.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.logger.Info("creating asset bucket", "bucket", p.bucket, "region", p.region)
		p.initErr = p.api.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads the zip of a. Keys are content addressed, so an object
// that already exists is left untouched.
func (p *Publisher) Publish(ctx context.Context, a *bundle.Artifact) (Upload, error) {
	if a == nil {
		return Upload{}, errors.New("publish: nil artifact")
	}
	if err := p.ensureBucket(ctx); err != nil {
		return Upload{}, fmt.Errorf("ensure bucket: %w", err)
	}

	key := a.Key()
	exists, err := p.exists(ctx, key)
	if err != nil {
		return Upload{}, fmt.Errorf("stat %s: %w", key, err)
	}
	if exists {
		p.logger.Debug("artifact already published", "key", key)
		return Upload{Key: key, Skipped: true}, nil
	}

	var buf bytes.Buffer
	if err := a.WriteZip(&buf); err != nil {
		return Upload{}, fmt.Errorf("archiving %s: %w", a.RootPath, err)
	}
	size := int64(buf.Len())
	_, err = p.api.PutObject(ctx, p.bucket, key, &buf, size, minio.PutObjectOptions{
		ContentType:  "application/zip",
		UserMetadata: map[string]string{digestMetadata: a.Digest},
	})
	if err != nil {
		return Upload{}, fmt.Errorf("upload %s: %w", key, err)
	}
	p.logger.Info("published artifact", "bucket", p.bucket, "key", key, "bytes", size)
	return Upload{Key: key, Size: size}, nil
}

// PublishAll publishes artifacts keyed by function logical ID, in ID order.
// It stops at the first failure.
func (p *Publisher) PublishAll(ctx context.Context, artifacts map[string]*bundle.Artifact) ([]Upload, error) {
	ids := make([]string, 0, len(artifacts))
	for id := range artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	uploads := make([]Upload, 0, len(ids))
	for _, id := range ids {
		u, err := p.Publish(ctx, artifacts[id])
		if err != nil {
			return uploads, fmt.Errorf("%s: %w", id, err)
		}
		u.Function = id
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func (p *Publisher) exists(ctx context.Context, key string) (bool, error) {
	_, err := p.api.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}
