// Package imageproc inspects image payloads: format sniffing, resolution and re-encoding to PNG.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("empty image payload")

// Format returns the lowercased extension of the encoded image (png, jpeg, webp...)
func Format(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	_, f, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image config: %w", err)
	}
	return f, nil
}

// Resolution - "<width>x<height>", only the header is decoded
func Resolution(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image config: %w", err)
	}
	return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), nil
}

// ToPNG перекодирует в PNG; PNG возвращается как есть
func ToPNG(data []byte) ([]byte, error) {
	f, err := Format(data)
	if err != nil {
		return nil, err
	}
	if f == "png" {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
