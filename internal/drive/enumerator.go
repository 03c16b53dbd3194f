package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/docsync/internal/domain"
)

var (
	ErrNoArchiveFolder = errors.New("no archive folder configured")
	ErrFolderNotFound  = errors.New("folder not found")
)

// Enumerator lists the PDFs waiting in one source folder and moves them to
// the archive folder once handled.
type Enumerator struct {
	service         *Service
	folderID        string
	archiveFolderID string
	maxFiles        int
}

func NewEnumerator(s *Service, folderID, archiveFolderID string, maxFiles int) *Enumerator {
	return &Enumerator{
		service:         s,
		folderID:        folderID,
		archiveFolderID: archiveFolderID,
		maxFiles:        maxFiles,
	}
}

// ListFiles returns metadata only; content is fetched per file with Content.
func (e *Enumerator) ListFiles(ctx context.Context) ([]domain.SourceFile, error) {
	files, err := e.service.ListPDFFiles(ctx, e.folderID, e.maxFiles)
	if err != nil {
		return nil, fmt.Errorf("list source folder %s: %w", e.folderID, err)
	}
	return files, nil
}

func (e *Enumerator) Content(ctx context.Context, fileID string) ([]byte, error) {
	return e.service.Content(ctx, fileID)
}

func (e *Enumerator) Relocate(ctx context.Context, fileID string) error {
	if e.archiveFolderID == "" {
		return ErrNoArchiveFolder
	}
	return e.service.MoveFile(ctx, fileID, e.archiveFolderID)
}

func (e *Enumerator) FolderID() string {
	return e.folderID
}
