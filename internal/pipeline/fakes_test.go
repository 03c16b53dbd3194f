package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/andresuchdata/docsync/internal/drive"
	"github.com/andresuchdata/docsync/internal/storage"
)

type fakeSource struct {
	files       []domain.SourceFile
	listErr     error
	contentErr  map[string]error
	relocateErr map[string]error
	noArchive   bool

	listCalls int
	relocated []string
	// hook runs after each Content call
	onContent func(id string)
}

func (s *fakeSource) ListFiles(context.Context) ([]domain.SourceFile, error) {
	s.listCalls++
	return s.files, s.listErr
}

func (s *fakeSource) Content(_ context.Context, id string) ([]byte, error) {
	if s.onContent != nil {
		defer s.onContent(id)
	}
	if err := s.contentErr[id]; err != nil {
		return nil, err
	}
	return []byte("%PDF " + id), nil
}

func (s *fakeSource) Relocate(_ context.Context, id string) error {
	if s.noArchive {
		return drive.ErrNoArchiveFolder
	}
	if err := s.relocateErr[id]; err != nil {
		return err
	}
	s.relocated = append(s.relocated, id)
	return nil
}

// fakeStore remembers uploads so a second run sees them as existing.
type fakeStore struct {
	existing  map[string]bool
	failures  map[string]error
	authErr   error
	authCalls int
	exists    []string
	uploads   []storage.UploadInput
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}, failures: map[string]error{}}
}

func (s *fakeStore) Authorize(context.Context) error {
	s.authCalls++
	return s.authErr
}

func (s *fakeStore) Exists(_ context.Context, name string) bool {
	s.exists = append(s.exists, name)
	return s.existing[name]
}

func (s *fakeStore) Upload(_ context.Context, in storage.UploadInput) storage.UploadOutcome {
	s.uploads = append(s.uploads, in)
	if err := s.failures[in.FileID]; err != nil {
		return storage.UploadOutcome{Attempts: 3, Err: err}
	}
	s.existing[storage.ObjectName(in.FileID)] = true
	return storage.UploadOutcome{
		Path:     "gs://bucket/" + storage.ObjectKey(in.FileID, in.ModifiedTime, time.UTC),
		Attempts: 1,
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []*RunResult
	err     error
}

func (r *fakeRecorder) RecordRun(_ context.Context, result *RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return r.err
}

func files(ids ...string) []domain.SourceFile {
	out := make([]domain.SourceFile, len(ids))
	for i, id := range ids {
		out[i] = domain.SourceFile{
			ID:           id,
			Name:         id + ".pdf",
			MimeType:     domain.PDFMimeType,
			ModifiedTime: time.Date(2024, 3, 1, 10, i, 0, 0, time.UTC),
		}
	}
	return out
}

func serverError(msg string) error {
	return &storage.UploadError{StatusCode: 500, Message: fmt.Sprintf("HTTP 500: %s", msg), Attempts: 3}
}

var errDriveDown = errors.New("drive unavailable")
