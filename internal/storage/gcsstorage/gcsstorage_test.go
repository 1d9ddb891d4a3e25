package gcsstorage

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyBucket(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.ErrorIs(t, err, model.ErrNotConfigured)
}

func TestMapErr(t *testing.T) {
	require.ErrorIs(t, mapErr("results/a.png", storage.ErrObjectNotExist), model.ErrFileNotFound)

	other := errors.New("boom")
	require.ErrorIs(t, mapErr("results/a.png", other), other)
	require.NotErrorIs(t, mapErr("results/a.png", other), model.ErrFileNotFound)
}

func TestObjectName(t *testing.T) {
	require.Equal(t, "uploads/x.jpg", objectName(model.NamespaceUploads, "x.jpg"))
}
