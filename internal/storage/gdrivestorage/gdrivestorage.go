// Package gdrivestorage keeps uploads and results in two Google Drive folders under the app folder.
// Identifiers are Drive file ids.
package gdrivestorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/pool"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/blob"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Options struct {
	FolderID         string
	ClientSecretFile string
	TokenFile        string
	PoolSize         int
}

type Storage struct {
	services *pool.Pool[*drive.Service]
	folders  map[model.Namespace]string
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.FolderID == "" {
		return nil, fmt.Errorf("%w: GOOGLE_DRIVE_APP_FOLDER_ID", model.ErrNotConfigured)
	}
	httpClient, err := oauthClient(ctx, opts.ClientSecretFile, opts.TokenFile)
	if err != nil {
		return nil, err
	}

	// drive.Service не делим между воркерами - у каждого свой
	services := pool.New(opts.PoolSize, func(ctx context.Context) (*drive.Service, error) {
		return drive.NewService(ctx, option.WithHTTPClient(httpClient))
	}, nil)

	s := &Storage{services: services, folders: map[model.Namespace]string{}}
	if err := s.ensureFolders(ctx, opts.FolderID); err != nil {
		_ = services.Close()
		return nil, err
	}
	return s, nil
}

func oauthClient(ctx context.Context, secretFile, tokenFile string) (*http.Client, error) {
	if secretFile == "" || tokenFile == "" {
		return nil, fmt.Errorf("%w: GOOGLE_CLIENT_SECRET_FILE/GOOGLE_TOKEN_FILE", model.ErrNotConfigured)
	}

	secret, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read client secret file: %v", model.ErrNotConfigured, err)
	}
	cfg, err := google.ConfigFromJSON(secret, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse client secret file: %v", model.ErrNotConfigured, err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read token file: %v", model.ErrNotConfigured, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("%w: unable to parse token file: %v", model.ErrNotConfigured, err)
	}

	return cfg.Client(ctx, tok), nil
}

// ensureFolders находит или создает uploads и results параллельно
func (s *Storage) ensureFolders(ctx context.Context, parentID string) error {
	ids := make([]string, 2)
	namespaces := []model.Namespace{model.NamespaceUploads, model.NamespaceResults}

	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range namespaces {
		g.Go(func() error {
			return s.services.With(gctx, func(srv *drive.Service) error {
				id, err := getOrCreateFolder(gctx, srv, string(ns), parentID)
				ids[i] = id
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to prepare Drive folders: %w", err)
	}

	for i, ns := range namespaces {
		s.folders[ns] = ids[i]
	}
	zlog.Logger.Info().Str("uploads", ids[0]).Str("results", ids[1]).Msg("Google Drive folders ready")
	return nil
}

func getOrCreateFolder(ctx context.Context, srv *drive.Service, name, parentID string) (string, error) {
	list, err := srv.Files.List().
		Q(folderQuery(name, parentID)).
		Spaces("drive").
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder, err := srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return folder.Id, nil
}

func folderQuery(name, parentID string) string {
	escape := func(s string) string { return strings.ReplaceAll(s, "'", `\'`) }
	return fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false and '%s' in parents",
		escape(name), folderMimeType, escape(parentID))
}

func (s *Storage) Close() error {
	return s.services.Close()
}

func (s *Storage) SaveUpload(ctx context.Context, file model.Upload) (string, error) {
	data, err := blob.ReadUpload(file)
	if err != nil {
		return "", err
	}
	return s.upload(ctx, model.NamespaceUploads, uploadName(file.Filename), blob.ContentType(file), data)
}

func (s *Storage) SaveResult(ctx context.Context, data []byte, ext string) (string, error) {
	name := blob.ResultID(ext)
	return s.upload(ctx, model.NamespaceResults, name, model.ContentTypeFor(name), data)
}

func (s *Storage) UploadContent(ctx context.Context, id string) ([]byte, error) {
	return s.download(ctx, model.NamespaceUploads, id)
}

func (s *Storage) ResultContent(ctx context.Context, id string) ([]byte, error) {
	return s.download(ctx, model.NamespaceResults, id)
}

// ResultURI открывает файл на чтение всем и отдает webContentLink
func (s *Storage) ResultURI(ctx context.Context, id string) (string, error) {
	var link string
	err := s.services.With(ctx, func(srv *drive.Service) error {
		if err := s.checkFolder(ctx, srv, model.NamespaceResults, id); err != nil {
			return err
		}

		perm := &drive.Permission{Type: "anyone", Role: "reader"}
		if _, err := srv.Permissions.Create(id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
			return mapErr(id, fmt.Errorf("failed to set permission: %w", err))
		}

		f, err := srv.Files.Get(id).Fields("webContentLink").SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return mapErr(id, err)
		}
		if f.WebContentLink == "" {
			return fmt.Errorf("webContentLink is empty for file %s", id)
		}
		link = f.WebContentLink
		return nil
	})
	return link, err
}

func (s *Storage) upload(ctx context.Context, ns model.Namespace, name, mimeType string, data []byte) (string, error) {
	var id string
	err := s.services.With(ctx, func(srv *drive.Service) error {
		f, err := srv.Files.Create(&drive.File{
			Name:     name,
			MimeType: mimeType,
			Parents:  []string{s.folders[ns]},
		}).Media(bytes.NewReader(data)).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to upload %q to Google Drive: %w", name, err)
		}
		id = f.Id
		return nil
	})
	return id, err
}

func (s *Storage) download(ctx context.Context, ns model.Namespace, id string) ([]byte, error) {
	var data []byte
	err := s.services.With(ctx, func(srv *drive.Service) error {
		if err := s.checkFolder(ctx, srv, ns, id); err != nil {
			return err
		}

		resp, err := srv.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return mapErr(id, err)
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read %q from Google Drive: %w", id, err)
		}
		return nil
	})
	return data, err
}

// checkFolder - файл из чужой папки считается отсутствующим
func (s *Storage) checkFolder(ctx context.Context, srv *drive.Service, ns model.Namespace, id string) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", model.ErrFileNotFound)
	}
	f, err := srv.Files.Get(id).Fields("parents").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return mapErr(id, err)
	}
	if !slices.Contains(f.Parents, s.folders[ns]) {
		return fmt.Errorf("%q in %s: %w", id, ns, model.ErrFileNotFound)
	}
	return nil
}

func uploadName(filename string) string {
	id := blob.UploadID("")
	return id + "_" + filename
}

func mapErr(id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%q: %w", id, model.ErrFileNotFound)
	}
	return err
}
