package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ObjectStore is the destination the sync engine writes PDFs into.
type ObjectStore interface {
	// Authorize obtains a credential before any file is touched.
	Authorize(ctx context.Context) error
	// Exists reports whether an object with base name name is already stored
	// anywhere in the bucket. Errors are logged and reported as false.
	Exists(ctx context.Context, name string) bool
	Upload(ctx context.Context, in UploadInput) UploadOutcome
}

// UploadInput is one file to store.
type UploadInput struct {
	FileID       string
	FileName     string
	Data         []byte
	ContentType  string
	ModifiedTime time.Time
}

// UploadOutcome is either a stored path or an error, never both.
type UploadOutcome struct {
	Path     string
	Attempts int
	Err      error
}

func (o UploadOutcome) OK() bool {
	return o.Err == nil
}

// UploadError is an upload the destination refused or that kept failing.
type UploadError struct {
	StatusCode int
	Message    string
	Attempts   int
	// Permanent is set for client errors that were not retried.
	Permanent bool
	Err       error
}

func (e *UploadError) Error() string {
	return e.Message
}

func (e *UploadError) Unwrap() error { return e.Err }

// ObjectName is the base name an object for fileID is stored under.
func ObjectName(fileID string) string {
	return fileID + ".pdf"
}

// ObjectKey places a file under an hourly prefix derived from its
// modification time: YYYY-MM-DD/HH/<id>.pdf.
func ObjectKey(fileID string, modified time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s/%s", modified.In(loc).Format("2006-01-02/15"), ObjectName(fileID))
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
