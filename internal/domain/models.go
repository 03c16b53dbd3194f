// internal/domain/models.go
package domain

import "time"

// PDFMimeType is the only content type the sync engine picks up.
const PDFMimeType = "application/pdf"

// SourceFile is a PDF discovered in the source folder.
type SourceFile struct {
	ID           string    `json:"id" db:"file_id"`
	Name         string    `json:"name" db:"name"`
	MimeType     string    `json:"mime_type" db:"-"`
	ModifiedTime time.Time `json:"modified_time" db:"modified_time"`
	Size         int64     `json:"size" db:"-"`
}

// FileOutcome is what happened to one file during a run.
type FileOutcome struct {
	FileID          string    `json:"file_id" db:"file_id"`
	Name            string    `json:"name" db:"name"`
	State           FileState `json:"state" db:"state"`
	ObjectPath      string    `json:"object_path,omitempty" db:"object_path"`
	Attempts        int       `json:"attempts" db:"attempts"`
	Error           string    `json:"error,omitempty" db:"error"`
	Relocated       bool      `json:"relocated" db:"relocated"`
	RelocationError string    `json:"relocation_error,omitempty" db:"relocation_error"`
}
