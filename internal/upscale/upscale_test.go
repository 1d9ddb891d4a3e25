package upscale

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/imageproc"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/localstorage"
	"github.com/UnendingLoop/ImageGenAPI/internal/vendorhttp"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h)), imaging.PNG))
	return buf.Bytes()
}

// fakePicsart отвечает на POST /upscale ссылкой на GET /result
func fakePicsart(t *testing.T, status int, result []byte) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upscale", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("X-Picsart-API-Key"))
		require.NoError(t, r.ParseMultipartForm(32<<20))
		require.Equal(t, "PNG", r.FormValue("format"))
		require.Equal(t, "2", r.FormValue("upscale_factor"))
		_, _, err := r.FormFile("image")
		require.NoError(t, err)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "quota exceeded"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"id": "x", "url": srv.URL + "/result"},
		})
	})
	mux.HandleFunc("GET /result", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(result)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, url, key string) (*Service, *localstorage.Storage) {
	t.Helper()
	store, err := localstorage.New(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	client := vendorhttp.New(0, 5*time.Second)
	return New(store, client, url+"/upscale", key), store
}

func TestUpscale(t *testing.T) {
	srv := fakePicsart(t, http.StatusOK, pngOf(t, 40, 20))
	s, store := newService(t, srv.URL, "secret")
	ctx := context.Background()

	// исходник лежит в загрузках - ищется после результатов
	upID, err := store.SaveUpload(ctx, model.Upload{Filename: "in.png", Size: -1, Body: bytes.NewReader(pngOf(t, 20, 10))})
	require.NoError(t, err)

	res, err := s.Upscale(ctx, upID, 2)
	require.NoError(t, err)
	require.Equal(t, "20x10", res.InputResolution)
	require.Equal(t, "40x20", res.OutputResolution)

	data, err := store.ResultContent(ctx, res.Identifier)
	require.NoError(t, err)
	got, err := imageproc.Resolution(data)
	require.NoError(t, err)
	require.Equal(t, "40x20", got)
}

func TestUpscale_NotFound(t *testing.T) {
	s, _ := newService(t, "http://127.0.0.1:1", "secret")

	_, err := s.Upscale(context.Background(), "missing.png", 2)
	require.ErrorIs(t, err, model.ErrFileNotFound)
	require.Contains(t, err.Error(), "missing.png")
}

func TestUpscale_VendorError(t *testing.T) {
	srv := fakePicsart(t, http.StatusPaymentRequired, nil)
	s, store := newService(t, srv.URL, "secret")
	ctx := context.Background()

	id, err := store.SaveResult(ctx, pngOf(t, 10, 10), "png")
	require.NoError(t, err)

	_, err = s.Upscale(ctx, id, 2)
	require.ErrorIs(t, err, model.ErrUpstream)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestUpscale_NoKey(t *testing.T) {
	s, store := newService(t, "http://127.0.0.1:1", "")
	ctx := context.Background()

	id, err := store.SaveResult(ctx, pngOf(t, 10, 10), "png")
	require.NoError(t, err)

	_, err = s.Upscale(ctx, id, 2)
	require.ErrorIs(t, err, model.ErrNotConfigured)

	// неизвестный id без ключа - все равно 404
	_, err = s.Upscale(ctx, "missing.png", 2)
	require.ErrorIs(t, err, model.ErrFileNotFound)
}

func TestUpscale_PostIsNotRetried(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	store, err := localstorage.New(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	client := vendorhttp.New(2, 5*time.Second)
	client.RetryWaitMin, client.RetryWaitMax = time.Millisecond, time.Millisecond
	s := New(store, client, srv.URL, "secret")

	id, err := store.SaveResult(context.Background(), pngOf(t, 10, 10), "png")
	require.NoError(t, err)

	_, err = s.Upscale(context.Background(), id, 2)
	require.ErrorIs(t, err, model.ErrUpstream)
	require.Equal(t, int32(1), posts.Load())
}
