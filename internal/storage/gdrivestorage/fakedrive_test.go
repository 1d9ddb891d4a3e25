package gdrivestorage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/pool"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	uploadsFolder = "up-folder"
	resultsFolder = "res-folder"
)

type fakeFile struct {
	meta   drive.File
	data   []byte
	shared bool
}

// fakeDrive - минимальный Drive v3 в памяти: files.create (multipart), files.get, permissions.create
type fakeDrive struct {
	mu          sync.Mutex
	files       map[string]*fakeFile
	seq         int
	permissions int
	srv         *httptest.Server
}

func newFakeDrive(t *testing.T) *fakeDrive {
	t.Helper()
	fd := &fakeDrive{files: map[string]*fakeFile{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/drive/v3/files", fd.create)
	mux.HandleFunc("GET /files/{id}", fd.get)
	mux.HandleFunc("POST /files/{id}/permissions", fd.share)
	fd.srv = httptest.NewServer(mux)
	t.Cleanup(fd.srv.Close)
	return fd
}

// storage собирает Storage поверх фейка тем же пулом, что и New
func (fd *fakeDrive) storage(t *testing.T) *Storage {
	t.Helper()
	services := pool.New(2, func(ctx context.Context) (*drive.Service, error) {
		return drive.NewService(ctx, option.WithEndpoint(fd.srv.URL+"/"), option.WithHTTPClient(fd.srv.Client()))
	}, nil)
	t.Cleanup(func() { _ = services.Close() })

	return &Storage{
		services: services,
		folders: map[model.Namespace]string{
			model.NamespaceUploads: uploadsFolder,
			model.NamespaceResults: resultsFolder,
		},
	}
}

func (fd *fakeDrive) file(id string) (fakeFile, bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	f, ok := fd.files[id]
	if !ok {
		return fakeFile{}, false
	}
	return *f, true
}

func (fd *fakeDrive) permissionCalls() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.permissions
}

func (fd *fakeDrive) create(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var meta drive.File
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(mediaPart)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fd.mu.Lock()
	fd.seq++
	meta.Id = fmt.Sprintf("file-%d", fd.seq)
	fd.files[meta.Id] = &fakeFile{meta: meta, data: data}
	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"id": meta.Id})
}

func (fd *fakeDrive) get(w http.ResponseWriter, r *http.Request) {
	f, ok := fd.file(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": http.StatusNotFound, "message": "File not found"},
		})
		return
	}

	if r.URL.Query().Get("alt") == "media" {
		_, _ = w.Write(f.data)
		return
	}

	resp := map[string]any{"id": f.meta.Id, "parents": f.meta.Parents}
	if f.shared {
		resp["webContentLink"] = fd.srv.URL + "/uc?id=" + f.meta.Id + "&export=download"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (fd *fakeDrive) share(w http.ResponseWriter, r *http.Request) {
	var perm drive.Permission
	if err := json.NewDecoder(r.Body).Decode(&perm); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fd.mu.Lock()
	f, ok := fd.files[r.PathValue("id")]
	if ok && perm.Type == "anyone" && perm.Role == "reader" {
		f.shared = true
	}
	fd.permissions++
	fd.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": http.StatusNotFound, "message": "File not found"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": "anyoneWithLink", "type": perm.Type, "role": perm.Role})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
