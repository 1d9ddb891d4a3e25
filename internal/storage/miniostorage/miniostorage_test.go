package miniostorage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyEndpoint(t *testing.T) {
	_, err := New(context.Background(), Options{Bucket: "images"})
	require.ErrorIs(t, err, model.ErrNotConfigured)
}

func TestMapErr(t *testing.T) {
	err := mapErr("results/x.png", minio.ErrorResponse{Code: "NoSuchKey"})
	require.ErrorIs(t, err, model.ErrFileNotFound)

	other := errors.New("connection reset")
	require.Equal(t, other, mapErr("results/x.png", other))
}

func TestKey(t *testing.T) {
	require.Equal(t, "uploads/a.png", key(model.NamespaceUploads, "a.png"))
	require.Equal(t, "results/generated_b.png", key(model.NamespaceResults, "generated_b.png"))
}

func TestTTLOrDefault(t *testing.T) {
	require.Equal(t, time.Hour, ttlOrDefault(0))
	require.Equal(t, time.Minute, ttlOrDefault(time.Minute))
}
