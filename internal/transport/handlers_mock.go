package transport

import (
	"context"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/gin-gonic/gin"
)

type mockImageService struct {
	generateFn         func(ctx context.Context, in *model.GenerateData) (*model.ResultResponse, error)
	removeBackgroundFn func(ctx context.Context, id string) (*model.ResultResponse, error)
	describeFn         func(ctx context.Context, id string) (string, error)
	upscaleFn          func(ctx context.Context, id string, factor int) (*model.UpscaleResponse, error)
	historyFn          func(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error)
}

func (m *mockImageService) Generate(ctx context.Context, in *model.GenerateData) (*model.ResultResponse, error) {
	return m.generateFn(ctx, in)
}

func (m *mockImageService) RemoveBackground(ctx context.Context, id string) (*model.ResultResponse, error) {
	return m.removeBackgroundFn(ctx, id)
}

func (m *mockImageService) Describe(ctx context.Context, id string) (string, error) {
	return m.describeFn(ctx, id)
}

func (m *mockImageService) Upscale(ctx context.Context, id string, factor int) (*model.UpscaleResponse, error) {
	return m.upscaleFn(ctx, id, factor)
}

func (m *mockImageService) History(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error) {
	return m.historyFn(ctx, req)
}

func init() {
	gin.SetMode(gin.TestMode)
}
