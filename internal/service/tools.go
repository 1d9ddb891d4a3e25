package service

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	// Валидируем поле сортировки - в запрос попадает только имя колонки из белого списка
	req.Sort = strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(req.Sort, model.ByOperation):
		req.Sort = "operation"
	default:
		req.Sort = "created_at" // по дефолту сортировка по времени создания
	}

	// Валидируем порядок
	req.Order = strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту "новое-выше"
	}
}

// tempInputName - имя файла для PhotoRoom внутри временной папки
func tempInputName(id string) string {
	name := filepath.Base(strings.ReplaceAll(id, "\\", "/"))
	if name == "." || name == "/" || name == string(os.PathSeparator) {
		name = "input"
	}
	if model.FileExt(name) == "" {
		name += "." + model.DefaultResultExt
	}
	return name
}
