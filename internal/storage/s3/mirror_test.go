package s3_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"digidoc/internal/port"
	"digidoc/internal/storage/local"
	"digidoc/internal/storage/s3"
	"digidoc/mocks"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "t1/queue/d1/preprocessed.png", s3.Key("t1", "d1", "preprocessed.png"))
}

func TestMirror_WriteUploadsAfterLocalWrite(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	mirror := s3.NewMirror(local.NewArtifactStore(t.TempDir()), objects, nil)

	objects.On("Put", mock.Anything, port.Object{
		Key:         "t1/queue/d1/match_metadata.json",
		Data:        []byte("{}"),
		ContentType: "application/json",
	}).Return(nil)

	p, err := mirror.Write(context.Background(), "t1", "d1", "match_metadata.json", []byte("{}"))
	require.NoError(t, err)

	_, statErr := os.Stat(p)
	assert.NoError(t, statErr)
	objects.AssertExpectations(t)
}

func TestMirror_UploadFailureKeepsLocalResult(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	mirror := s3.NewMirror(local.NewArtifactStore(t.TempDir()), objects, nil)
	objects.On("Put", mock.Anything, mock.Anything).Return(errors.New("network down"))

	p, err := mirror.Write(context.Background(), "t1", "d1", "original.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, mirror.Path("t1", "d1", "original.png"), p)
}

func TestMirror_ResetClearsPrefix(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	mirror := s3.NewMirror(local.NewArtifactStore(t.TempDir()), objects, nil)
	objects.On("DeletePrefix", mock.Anything, "t1/queue/d1/").Return(3, nil)

	require.NoError(t, mirror.Reset(context.Background(), "t1", "d1"))
	objects.AssertExpectations(t)
}

func TestMirror_ResetToleratesObjectStorageErrors(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	mirror := s3.NewMirror(local.NewArtifactStore(t.TempDir()), objects, nil)
	objects.On("DeletePrefix", mock.Anything, "t1/queue/d1/").Return(0, errors.New("denied"))

	assert.NoError(t, mirror.Reset(context.Background(), "t1", "d1"))
}

func TestMirror_PresignedURL(t *testing.T) {
	objects := new(mocks.MockObjectStore)
	mirror := s3.NewMirror(local.NewArtifactStore(t.TempDir()), objects, nil)
	objects.On("SignedURL", mock.Anything, "t1/queue/d1/preprocessed.png", 15*time.Minute).
		Return("https://example.test/signed", nil)

	url, err := mirror.PresignedURL(context.Background(), "t1", "d1", "preprocessed.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/signed", url)
}
