// Package publish uploads a run's artifact set to S3-compatible storage.
package publish

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// Settings configures the object store target.
type Settings struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	Secure       bool
	CreateBucket bool
}

// Validate checks that the target is fully specified.
func (s Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.Endpoint) == "":
		return fmt.Errorf("%w: endpoint is required", scribeerrors.ErrConfigInvalidPublish)
	case strings.TrimSpace(s.Bucket) == "":
		return fmt.Errorf("%w: bucket is required", scribeerrors.ErrConfigInvalidPublish)
	case s.AccessKey == "" || s.SecretKey == "":
		return fmt.Errorf("%w: access key and secret key are required", scribeerrors.ErrConfigInvalidPublish)
	}
	return nil
}

// ObjectStore is the subset of *minio.Client used for publishing.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Upload describes one published object.
type Upload struct {
	Artifact string `json:"artifact"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	ETag     string `json:"etag,omitempty"`
}

// NewMinIOClient creates a client for the configured endpoint.
func NewMinIOClient(s Settings) (*minio.Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return minio.New(s.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
		Secure:    s.Secure,
		Region:    s.Region,
		Transport: newTransport(),
	})
}

// Publisher uploads artifacts under <prefix>/<run id>/.
type Publisher struct {
	settings Settings
	store    ObjectStore
}

// NewPublisher creates a publisher over store.
func NewPublisher(s Settings, store ObjectStore) *Publisher {
	return &Publisher{settings: s, store: store}
}

// Publish uploads every artifact of a run. The first failed upload aborts
// the remainder; uploads completed before it are returned.
func (p *Publisher) Publish(ctx context.Context, runID string, artifacts []domain.Artifact) ([]Upload, error) {
	log := zerolog.Ctx(ctx)

	if runID == "" {
		return nil, fmt.Errorf("%w: run id", scribeerrors.ErrEmptyValue)
	}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}

	uploads := make([]Upload, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctxutil.Canceled(ctx); err != nil {
			return uploads, err
		}

		key := p.Key(runID, a.Name)
		info, err := p.store.FPutObject(ctx, p.settings.Bucket, key, a.Path, minio.PutObjectOptions{
			ContentType: contentType(a.Kind),
			UserMetadata: map[string]string{
				"run-id":   runID,
				"producer": a.Producer,
				"sha256":   a.SHA256,
			},
		})
		if err != nil {
			return uploads, fmt.Errorf("%w: %s: %w", scribeerrors.ErrPublishFailed, a.Name, err)
		}

		log.Debug().
			Str("bucket", p.settings.Bucket).
			Str("key", key).
			Int64("size", info.Size).
			Msg("artifact published")

		uploads = append(uploads, Upload{
			Artifact: a.Name,
			Bucket:   p.settings.Bucket,
			Key:      key,
			Size:     info.Size,
			ETag:     info.ETag,
		})
	}
	return uploads, nil
}

// Key returns the object key for an artifact of a run.
func (p *Publisher) Key(runID, name string) string {
	return path.Join(strings.Trim(p.settings.Prefix, "/"), runID, name)
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.settings.Bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket check: %w", scribeerrors.ErrPublishFailed, err)
	}
	if exists {
		return nil
	}
	if !p.settings.CreateBucket {
		return fmt.Errorf("%w: bucket %s does not exist", scribeerrors.ErrPublishFailed, p.settings.Bucket)
	}
	if err := p.store.MakeBucket(ctx, p.settings.Bucket, minio.MakeBucketOptions{Region: p.settings.Region}); err != nil {
		return fmt.Errorf("%w: create bucket: %w", scribeerrors.ErrPublishFailed, err)
	}
	return nil
}

func contentType(kind constants.ArtifactKind) string {
	switch kind {
	case constants.ArtifactKindSnapshot, constants.ArtifactKindRecord:
		return "application/json"
	case constants.ArtifactKindGraph:
		return "text/vnd.graphviz"
	case constants.ArtifactKindMetrics:
		return "text/plain; version=0.0.4"
	case constants.ArtifactKindText, constants.ArtifactKindReport:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
