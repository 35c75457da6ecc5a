package publish_test

import (
	"context"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/publish"
	"github.com/mrz1836/scribe/internal/testutil"
)

type fakeStore struct {
	mu        sync.Mutex
	exists    bool
	made      []string
	puts      map[string]minio.PutObjectOptions
	failOn    string
	existsErr error
}

func newFakeStore(exists bool) *fakeStore {
	return &fakeStore{exists: exists, puts: make(map[string]minio.PutObjectOptions)}
}

func (f *fakeStore) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, bucket, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if object == f.failOn {
		return minio.UploadInfo{}, testutil.ErrMockNetwork
	}
	f.puts[object] = opts
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: 42, ETag: "etag"}, nil
}

func testCtx() context.Context {
	logger := zerolog.Nop()
	return logger.WithContext(context.Background())
}

func settings() publish.Settings {
	return publish.Settings{
		Endpoint:  "localhost:9000",
		Bucket:    "scribe-runs",
		Prefix:    "/nightly/",
		AccessKey: "access",
		SecretKey: "secret",
	}
}

func artifacts() []domain.Artifact {
	return []domain.Artifact{
		{Name: constants.RunFileName, Path: "/out/run.json", Kind: constants.ArtifactKindSnapshot, SHA256: "abc"},
		{Name: "calls.dot", Path: "/out/artifacts/calls.dot", Kind: constants.ArtifactKindGraph, Producer: "query:calls"},
	}
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, settings().Validate())

	s := settings()
	s.Endpoint = " "
	require.ErrorIs(t, s.Validate(), scribeerrors.ErrConfigInvalidPublish)

	s = settings()
	s.Bucket = ""
	require.ErrorIs(t, s.Validate(), scribeerrors.ErrConfigInvalidPublish)

	s = settings()
	s.SecretKey = ""
	require.ErrorIs(t, s.Validate(), scribeerrors.ErrConfigInvalidPublish)

	_, err := publish.NewMinIOClient(s)
	require.ErrorIs(t, err, scribeerrors.ErrConfigInvalidPublish)
}

func TestNewMinIOClient(t *testing.T) {
	client, err := publish.NewMinIOClient(settings())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestPublisher_Publish(t *testing.T) {
	store := newFakeStore(true)
	p := publish.NewPublisher(settings(), store)

	uploads, err := p.Publish(testCtx(), "run-1", artifacts())
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "nightly/run-1/run.json", uploads[0].Key)
	assert.Equal(t, "nightly/run-1/calls.dot", uploads[1].Key)
	assert.Equal(t, int64(42), uploads[1].Size)

	opts := store.puts["nightly/run-1/calls.dot"]
	assert.Equal(t, "text/vnd.graphviz", opts.ContentType)
	assert.Equal(t, "query:calls", opts.UserMetadata["producer"])
	assert.Empty(t, store.made)
}

func TestPublisher_BucketHandling(t *testing.T) {
	store := newFakeStore(false)
	_, err := publish.NewPublisher(settings(), store).Publish(testCtx(), "run-1", artifacts())
	require.ErrorIs(t, err, scribeerrors.ErrPublishFailed)

	s := settings()
	s.CreateBucket = true
	_, err = publish.NewPublisher(s, store).Publish(testCtx(), "run-1", artifacts())
	require.NoError(t, err)
	assert.Equal(t, []string{"scribe-runs"}, store.made)

	store = newFakeStore(true)
	store.existsErr = testutil.ErrMockNetwork
	_, err = publish.NewPublisher(settings(), store).Publish(testCtx(), "run-1", artifacts())
	require.ErrorIs(t, err, scribeerrors.ErrPublishFailed)
	require.ErrorIs(t, err, testutil.ErrMockNetwork)
}

func TestPublisher_UploadFailureKeepsCompleted(t *testing.T) {
	store := newFakeStore(true)
	store.failOn = "nightly/run-1/calls.dot"

	uploads, err := publish.NewPublisher(settings(), store).Publish(testCtx(), "run-1", artifacts())
	require.ErrorIs(t, err, scribeerrors.ErrPublishFailed)
	require.ErrorIs(t, err, testutil.ErrMockNetwork)
	assert.Len(t, uploads, 1)
}

func TestPublisher_RequiresRunID(t *testing.T) {
	_, err := publish.NewPublisher(settings(), newFakeStore(true)).Publish(testCtx(), "", nil)
	require.ErrorIs(t, err, scribeerrors.ErrEmptyValue)
}
