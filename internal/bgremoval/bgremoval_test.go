package bgremoval

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/vendorhttp"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "generated_abc.png")
	require.NoError(t, os.WriteFile(path, []byte("source-image"), 0o600))
	return path
}

func TestRemove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pr-key", r.Header.Get("x-api-key"))
		f, hdr, err := r.FormFile("image_file")
		require.NoError(t, err)
		require.Equal(t, "generated_abc.png", hdr.Filename)
		require.Equal(t, model.PNG, hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		require.Equal(t, "source-image", string(data))

		_, _ = w.Write([]byte("cut-out"))
	}))
	defer srv.Close()

	in := writeInput(t)
	out, err := New(vendorhttp.New(0, 5*time.Second), srv.URL).Remove(context.Background(), in, "pr-key")
	require.NoError(t, err)

	require.Equal(t, filepath.Dir(in), filepath.Dir(out))
	require.Regexp(t, regexp.MustCompile(`^generated_abc_NO_BG_[0-9a-f]{8}\.png$`), filepath.Base(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "cut-out", string(data))
}

func TestRemove_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(vendorhttp.New(0, 5*time.Second), srv.URL).Remove(context.Background(), writeInput(t), "bad")
	require.ErrorIs(t, err, model.ErrUpstream)
	require.Contains(t, err.Error(), "PhotoRoom API error: 403 - Forbidden")
}

func TestRemove_MissingInput(t *testing.T) {
	_, err := New(vendorhttp.New(0, time.Second), "http://127.0.0.1:1").
		Remove(context.Background(), filepath.Join(t.TempDir(), "nope.png"), "k")
	require.Error(t, err)
}

func TestOutputPath_Unique(t *testing.T) {
	require.NotEqual(t, OutputPath("/tmp/a.png"), OutputPath("/tmp/a.png"))
}
