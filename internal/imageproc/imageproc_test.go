package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestResolution(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{name: "png", data: testImage(t, 200, 100, imaging.PNG), want: "200x100"},
		{name: "jpeg", data: testImage(t, 64, 48, imaging.JPEG), want: "64x48"},
		{name: "empty", data: nil, wantErr: true},
		{name: "broken", data: []byte("not-an-image"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolution(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	f, err := Format(testImage(t, 10, 10, imaging.JPEG))
	require.NoError(t, err)
	require.Equal(t, "jpeg", f)

	_, err = Format(nil)
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestToPNG(t *testing.T) {
	png := testImage(t, 30, 20, imaging.PNG)
	out, err := ToPNG(png)
	require.NoError(t, err)
	require.Equal(t, png, out)

	out, err = ToPNG(testImage(t, 30, 20, imaging.JPEG))
	require.NoError(t, err)
	f, err := Format(out)
	require.NoError(t, err)
	require.Equal(t, "png", f)

	res, err := Resolution(out)
	require.NoError(t, err)
	require.Equal(t, "30x20", res)

	_, err = ToPNG([]byte("broken"))
	require.Error(t, err)
}
