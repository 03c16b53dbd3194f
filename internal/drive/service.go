package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	maxPageSize    = 1000
	fileFields     = "id, name, mimeType, modifiedTime, size"
)

type Service struct {
	srv *drive.Service
	log zerolog.Logger
}

// NewService connects with the given service-account JSON, or with
// application default credentials when it is empty.
func NewService(ctx context.Context, credentialsJSON, endpoint string) (*Service, error) {
	var opts []option.ClientOption

	if credentialsJSON != "" {
		config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(config.Client(ctx)))
	} else {
		client, err := google.DefaultClient(ctx, drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("unable to find default drive credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(client))
	}

	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	return NewServiceWithOptions(ctx, opts...)
}

// NewServiceWithOptions builds the Drive client from raw client options.
func NewServiceWithOptions(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{
		srv: srv,
		log: logger.Log.With().Str("component", "drive").Logger(),
	}, nil
}

// WithLogger returns s logging to l.
func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.log = l
	return s
}

// ListPDFFiles returns up to max PDFs directly inside folderID, following
// page tokens until the bound is reached.
func (s *Service) ListPDFFiles(ctx context.Context, folderID string, max int) ([]domain.SourceFile, error) {
	if max <= 0 {
		return nil, nil
	}
	pageSize := max
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	q := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", escapeQuery(folderID), domain.PDFMimeType)

	files := make([]domain.SourceFile, 0)
	pageToken := ""
	for len(files) < max {
		call := s.srv.Files.List().
			Q(q).
			Fields("nextPageToken, files(" + fileFields + ")").
			PageSize(int64(pageSize)).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve files: %w", err)
		}

		for _, f := range result.Files {
			files = append(files, s.toSourceFile(f))
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	if len(files) > max {
		files = files[:max]
	}
	return files, nil
}

// toSourceFile leaves ModifiedTime zero when Drive sends an unparseable
// value; callers must not derive object keys from it.
func (s *Service) toSourceFile(f *drive.File) domain.SourceFile {
	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		s.log.Warn().Err(err).
			Str("file_id", f.Id).
			Str("modified_time", f.ModifiedTime).
			Msg("unparseable modified time")
	}
	return domain.SourceFile{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: modified,
		Size:         f.Size,
	}
}

func (s *Service) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	resp, err := s.srv.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("unable to download file: %w", err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

// Content reads the whole file into memory.
func (s *Service) Content(ctx context.Context, fileID string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.DownloadFile(ctx, fileID, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MoveFile makes destFolderID the only parent of fileID.
func (s *Service) MoveFile(ctx context.Context, fileID, destFolderID string) error {
	current, err := s.srv.Files.Get(fileID).
		Fields("parents").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to read parents of %s: %w", fileID, err)
	}

	call := s.srv.Files.Update(fileID, &drive.File{}).
		AddParents(destFolderID).
		Fields("id, parents").
		SupportsAllDrives(true).
		Context(ctx)
	if len(current.Parents) > 0 {
		call = call.RemoveParents(strings.Join(current.Parents, ","))
	}

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("unable to move %s: %w", fileID, err)
	}
	return nil
}

func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "root", nil
	}

	folders := strings.Split(path, "/")
	currentID := "root"

	for _, folder := range folders {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(result.Files) == 0 {
			return "", fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

func escapeQuery(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `'`, `\'`)
}
