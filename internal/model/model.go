// Package model provides data-structs, constants and errors shared by the whole app
package model

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	Namespace string
	Operation string
)

const (
	NamespaceUploads Namespace = "uploads"
	NamespaceResults Namespace = "results"
)

const (
	OpGenerate         Operation = "generate"
	OpRemoveBackground Operation = "remove_background"
	OpDescribe         Operation = "describe"
	OpUpscale          Operation = "upscale"
)

//---------------------

// MaxUploadSize - 10 MiB
const MaxUploadSize int64 = 10 << 20

const (
	ResultPrefix     = "generated_"
	DefaultResultExt = "png"
)

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	WEBP = "image/webp"
)

var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

var GetCType = map[string]string{
	"png":  PNG,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"webp": WEBP,
}

var GetFileExt = map[string]string{
	PNG:  "png",
	JPEG: "jpg",
	WEBP: "webp",
}

// FileExt returns lowercased substring after the final dot, or "" if there is none
func FileExt(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// AllowedFile reports whether the filename carries one of the allowed image extensions
func AllowedFile(filename string) bool {
	return AllowedExtensions[FileExt(filename)]
}

// ContentTypeFor resolves content type by extension, octet-stream if unknown
func ContentTypeFor(name string) string {
	if ct, ok := GetCType[FileExt(filepath.Base(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

var upscaleFactors = map[int]bool{2: true, 4: true}

func ValidUpscaleFactor(f int) bool {
	return upscaleFactors[f]
}

//---------------------

// Upload - incoming user file
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type GenerateData struct {
	Prompt string
	Model  string
	File   *Upload
}

type UpscaleResult struct {
	Identifier       string
	InputResolution  string
	OutputResolution string
}

//---------------------

type ResultResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ResultPath       string `json:"result_path"`
	ResultIdentifier string `json:"result_identifier"`
}

type UpscaleResponse struct {
	ResultResponse
	InputResolution    string `json:"input_resolution"`
	UpscaledResolution string `json:"upscaled_resolution"`
}

const (
	MsgGenerated        = "Image generated successfully"
	MsgBackgroundRemove = "Background removed successfully"
	MsgUpscaled         = "Image upscaled successfully"
)

//---------------------

// OperationRecord - one completed request, stored in history
type OperationRecord struct {
	ID               uuid.UUID  `json:"id"`
	Operation        Operation  `json:"operation"`
	Model            string     `json:"model,omitempty"`
	Prompt           string     `json:"prompt,omitempty"`
	SourceIdentifier string     `json:"source_identifier,omitempty"`
	ResultIdentifier string     `json:"result_identifier,omitempty"`
	ResultURI        string     `json:"result_uri,omitempty"`
	Storage          string     `json:"storage"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByOperation = "operation"
	ByCreated   = "created"
	OrderASC    = "ascend"
	OrderDESC   = "descend"
)

// ------------------

var (
	ErrCommon500            error = errors.New("something went wrong. Try again later")     // 500
	ErrEmptyPrompt          error = errors.New("prompt cannot be empty")                    // 400
	ErrFileTypeNotAllowed   error = errors.New("file type not allowed")                     // 400
	ErrFileTooLarge         error = errors.New("file size exceeds the maximum of 10MB")     // 400
	ErrUnsupportedModel     error = errors.New("unsupported model")                         // 400
	ErrInvalidUpscaleFactor error = errors.New("upscale factor must be 2 or 4")             // 400
	ErrImageRequired        error = errors.New("image identifier is required")              // 400
	ErrMissingField         error = errors.New("field required")                            // 422
	ErrMalformedField       error = errors.New("invalid field value")                       // 422
	ErrFileNotFound         error = errors.New("file not found")                            // 404
	ErrNotConfigured        error = errors.New("required setting is not configured")        // 500
	ErrUpstream             error = errors.New("upstream service failure")                  // 500
	ErrHistoryDisabled      error = errors.New("operation history is not enabled")          // 503
	ErrEmptyVendorResult    error = errors.New("vendor response contains no image")         // 500
	ErrUnsupportedStorage   error = errors.New("unsupported storage type")                  // на старте
)
