package openaigen

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type imagesMock struct {
	GenerateFn func(ctx context.Context, body openai.ImageGenerateParams) (*openai.ImagesResponse, error)
	EditFn     func(ctx context.Context, body openai.ImageEditParams) (*openai.ImagesResponse, error)
}

func (m *imagesMock) Generate(ctx context.Context, body openai.ImageGenerateParams, _ ...option.RequestOption) (*openai.ImagesResponse, error) {
	return m.GenerateFn(ctx, body)
}

func (m *imagesMock) Edit(ctx context.Context, body openai.ImageEditParams, _ ...option.RequestOption) (*openai.ImagesResponse, error) {
	return m.EditFn(ctx, body)
}
