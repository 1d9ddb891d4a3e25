// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

const bannerMessage = "Image Generation API is running"

type ImageHandler struct {
	service ImageService
}

type ImageService interface {
	Generate(ctx context.Context, in *model.GenerateData) (*model.ResultResponse, error)
	RemoveBackground(ctx context.Context, id string) (*model.ResultResponse, error)
	Describe(ctx context.Context, id string) (string, error)
	Upscale(ctx context.Context, id string, factor int) (*model.UpscaleResponse, error)
	History(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error)
}

func NewImageHandler(svc ImageService) *ImageHandler {
	return &ImageHandler{
		service: svc,
	}
}

func (h ImageHandler) Root(ctx *ginext.Context) {
	ctx.JSON(200, ginext.H{"message": bannerMessage})
}

func (h ImageHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, ginext.H{"message": "pong"})
}

func (h ImageHandler) Generate(ctx *ginext.Context) {
	logger := mwlogger.LoggerFromContext(ctx.Request.Context())
	logger.Info().Msg("GENERATE IMAGE ENDPOINT ACCESSED")

	if !parseForm(ctx) {
		return
	}
	prompt, ok := requiredField(ctx, "prompt")
	if !ok {
		return
	}
	modelName, ok := requiredField(ctx, "model")
	if !ok {
		return
	}

	in := model.GenerateData{Prompt: prompt, Model: modelName}

	// файл опционален
	file, header, err := ctx.Request.FormFile("file")
	switch {
	case err == nil:
		defer closeFileFlow(file)
		in.File = &model.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		ctx.JSON(422, ginext.H{"detail": "invalid file: " + err.Error()})
		return
	}

	res, err := h.service.Generate(ctx.Request.Context(), &in)
	if err != nil {
		respondErr(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) RemoveBackground(ctx *ginext.Context) {
	logger := mwlogger.LoggerFromContext(ctx.Request.Context())
	logger.Info().Msg("BACKGROUND REMOVAL ENDPOINT ACCESSED")

	if !parseForm(ctx) {
		return
	}
	id, ok := requiredField(ctx, "file_identifier")
	if !ok {
		return
	}

	res, err := h.service.RemoveBackground(ctx.Request.Context(), id)
	if err != nil {
		respondErr(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) Describe(ctx *ginext.Context) {
	logger := mwlogger.LoggerFromContext(ctx.Request.Context())
	logger.Info().Msg("IMG DESCRIPTION ENDPOINT ACCESSED")

	if !parseForm(ctx) {
		return
	}
	id, ok := requiredField(ctx, "file_identifier")
	if !ok {
		return
	}

	desc, err := h.service.Describe(ctx.Request.Context(), id)
	if err != nil {
		respondErr(ctx, err)
		return
	}

	// описание отдается JSON-строкой как есть
	ctx.JSON(200, desc)
}

func (h ImageHandler) Upscale(ctx *ginext.Context) {
	logger := mwlogger.LoggerFromContext(ctx.Request.Context())
	logger.Info().Msg("UPSCALE IMAGE ENDPOINT ACCESSED")

	if !parseForm(ctx) {
		return
	}
	id, ok := requiredField(ctx, "image_identifier")
	if !ok {
		return
	}
	factorStr, ok := requiredField(ctx, "upscale_factor")
	if !ok {
		return
	}
	factor, err := strconv.Atoi(factorStr)
	if err != nil {
		respondErr(ctx, &fieldError{field: "upscale_factor", err: model.ErrMalformedField})
		return
	}

	res, err := h.service.Upscale(ctx.Request.Context(), id, factor)
	if err != nil {
		respondErr(ctx, err)
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) History(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, ginext.H{"detail": "failed to parse query-params"})
		return
	}

	res, err := h.service.History(ctx.Request.Context(), &req)
	if err != nil {
		respondErr(ctx, err)
		return
	}

	ctx.JSON(200, res)
}
