// Package generation provides the image generation/description contracts and a registry
// that maps a case-insensitive model key onto the generator built at startup.
package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
)

// Service generates an image from a prompt, optionally using a stored upload as context,
// and returns the identifier of the saved result
type Service interface {
	GenerateImage(ctx context.Context, prompt, uploadID string) (string, error)
}

// Describer returns a text (JSON) description of a stored image
type Describer interface {
	DescribeImage(ctx context.Context, id string) (string, error)
}

const (
	ModelOpenAI = "openai"
	ModelGemini = "gemini"
)

type Registry struct {
	services  map[string]Service
	describer Describer
}

// NewRegistry - ключи приводятся к нижнему регистру, describer - описатель по умолчанию
func NewRegistry(services map[string]Service, describer Describer) *Registry {
	r := &Registry{services: make(map[string]Service, len(services)), describer: describer}
	for name, s := range services {
		r.services[normalize(name)] = s
	}
	return r
}

func (r *Registry) Get(name string) (Service, error) {
	s, ok := r.services[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q, use one of %s", model.ErrUnsupportedModel, name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

func (r *Registry) Describer() Describer {
	return r.describer
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.services))
	for n := range r.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StripCodeFence снимает обертку ```json ... ``` с ответа модели.
// Текст без полной обертки возвращается как есть (без пробелов по краям).
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}

	body := strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	// первая строка может содержать тег языка
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		tag := strings.TrimSpace(body[:i])
		if tag == "" || !strings.ContainsAny(tag, " {[\"") {
			body = body[i+1:]
		}
	}
	return strings.TrimSpace(body)
}
