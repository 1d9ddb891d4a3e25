package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

// лимит на тело запроса: файл плюс запас на остальные поля формы
const maxBodySize = model.MaxUploadSize + 1<<20

// память под multipart, остальное multipart сбрасывает во временные файлы
const maxFormMemory = 32 << 20

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrFileNotFound):
		return 404
	case errors.Is(err, model.ErrMissingField),
		errors.Is(err, model.ErrMalformedField):
		return 422
	case errors.Is(err, model.ErrHistoryDisabled):
		return 503
	case errors.Is(err, model.ErrEmptyPrompt),
		errors.Is(err, model.ErrFileTypeNotAllowed),
		errors.Is(err, model.ErrFileTooLarge),
		errors.Is(err, model.ErrUnsupportedModel),
		errors.Is(err, model.ErrInvalidUpscaleFactor),
		errors.Is(err, model.ErrImageRequired):
		return 400
	default:
		return 500
	}
}

func respondErr(ctx *ginext.Context, err error) {
	ctx.JSON(errorCodeDefiner(err), ginext.H{"detail": err.Error()})
}

// parseForm разбирает multipart/urlencoded тело; слишком большое тело - 413
func parseForm(ctx *ginext.Context) bool {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBodySize)

	err := ctx.Request.ParseMultipartForm(maxFormMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		ctx.JSON(http.StatusRequestEntityTooLarge, ginext.H{"detail": model.ErrFileTooLarge.Error()})
		return false
	}
	ctx.JSON(422, ginext.H{"detail": "failed to parse form: " + err.Error()})
	return false
}

// requiredField - обязательное поле формы, отсутствие - 422
func requiredField(ctx *ginext.Context, name string) (string, bool) {
	v, ok := ctx.GetPostForm(name)
	if !ok {
		respondErr(ctx, &fieldError{field: name, err: model.ErrMissingField})
		return "", false
	}
	return v, true
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.err.Error() + ": " + e.field }
func (e *fieldError) Unwrap() error { return e.err }

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
