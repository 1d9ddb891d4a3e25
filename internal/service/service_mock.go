package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/UnendingLoop/ImageGenAPI/internal/generation"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
)

// MOCK STORAGE

type mockStorage struct {
	saveUploadFn    func(ctx context.Context, file model.Upload) (string, error)
	saveResultFn    func(ctx context.Context, data []byte, ext string) (string, error)
	uploadContentFn func(ctx context.Context, id string) ([]byte, error)
	resultContentFn func(ctx context.Context, id string) ([]byte, error)
	resultURIFn     func(ctx context.Context, id string) (string, error)
}

func (m *mockStorage) SaveUpload(ctx context.Context, file model.Upload) (string, error) {
	return m.saveUploadFn(ctx, file)
}

func (m *mockStorage) SaveResult(ctx context.Context, data []byte, ext string) (string, error) {
	return m.saveResultFn(ctx, data, ext)
}

func (m *mockStorage) UploadContent(ctx context.Context, id string) ([]byte, error) {
	return m.uploadContentFn(ctx, id)
}

func (m *mockStorage) ResultContent(ctx context.Context, id string) ([]byte, error) {
	return m.resultContentFn(ctx, id)
}

func (m *mockStorage) ResultURI(ctx context.Context, id string) (string, error) {
	return m.resultURIFn(ctx, id)
}

// memStorage - потокобезопасное хранилище в памяти для тестов с конкуренцией
type memStorage struct {
	mu      sync.Mutex
	n       int
	results map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{results: map[string][]byte{}}
}

func (m *memStorage) SaveUpload(_ context.Context, file model.Upload) (string, error) {
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	id := fmt.Sprintf("upload_%d_%s", m.n, file.Filename)
	m.results[id] = data
	return id, nil
}

func (m *memStorage) SaveResult(_ context.Context, data []byte, ext string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	id := fmt.Sprintf("%s%d.%s", model.ResultPrefix, m.n, ext)
	m.results[id] = data
	return id, nil
}

func (m *memStorage) UploadContent(_ context.Context, id string) ([]byte, error) {
	return m.get(id)
}

func (m *memStorage) ResultContent(_ context.Context, id string) ([]byte, error) {
	return m.get(id)
}

func (m *memStorage) ResultURI(_ context.Context, id string) (string, error) {
	if _, err := m.get(id); err != nil {
		return "", err
	}
	return "/results/" + id, nil
}

func (m *memStorage) get(id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.results[id]
	if !ok {
		return nil, model.ErrFileNotFound
	}
	return data, nil
}

// MOCK REGISTRY & VENDORS

type mockRegistry struct {
	getFn     func(name string) (generation.Service, error)
	describer generation.Describer
}

func (m *mockRegistry) Get(name string) (generation.Service, error) {
	return m.getFn(name)
}

func (m *mockRegistry) Describer() generation.Describer {
	return m.describer
}

type mockGenerator struct {
	generateFn func(ctx context.Context, prompt, uploadID string) (string, error)
}

func (m *mockGenerator) GenerateImage(ctx context.Context, prompt, uploadID string) (string, error) {
	return m.generateFn(ctx, prompt, uploadID)
}

type mockDescriber struct {
	describeFn func(ctx context.Context, id string) (string, error)
}

func (m *mockDescriber) DescribeImage(ctx context.Context, id string) (string, error) {
	return m.describeFn(ctx, id)
}

type mockUpscaler struct {
	upscaleFn func(ctx context.Context, id string, factor int) (model.UpscaleResult, error)
}

func (m *mockUpscaler) Upscale(ctx context.Context, id string, factor int) (model.UpscaleResult, error) {
	return m.upscaleFn(ctx, id, factor)
}

type mockRemover struct {
	removeFn func(ctx context.Context, inputPath, apiKey string) (string, error)
}

func (m *mockRemover) Remove(ctx context.Context, inputPath, apiKey string) (string, error) {
	return m.removeFn(ctx, inputPath, apiKey)
}

// MOCK HISTORY

type mockRecorder struct {
	mu      sync.Mutex
	records []model.OperationRecord
	err     error
}

func (m *mockRecorder) Record(_ context.Context, rec model.OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockRecorder) all() []model.OperationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OperationRecord(nil), m.records...)
}

type mockRepo struct {
	createFn  func(ctx context.Context, rec *model.OperationRecord) error
	getListFn func(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error)
}

func (m *mockRepo) Create(ctx context.Context, rec *model.OperationRecord) error {
	return m.createFn(ctx, rec)
}

func (m *mockRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error) {
	return m.getListFn(ctx, req)
}

// MOCK CACHE

type mockCache struct {
	getFn func(ctx context.Context, id string) (string, bool, error)
	setFn func(ctx context.Context, id, description string) error
}

func (m *mockCache) Get(ctx context.Context, id string) (string, bool, error) {
	return m.getFn(ctx, id)
}

func (m *mockCache) Set(ctx context.Context, id, description string) error {
	return m.setFn(ctx, id, description)
}
