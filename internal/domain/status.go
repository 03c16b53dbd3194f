package domain

import "strings"

// FileState tracks a file through a single run.
type FileState string

const (
	StateDiscovered         FileState = "discovered"
	StateSkippedPreexisting FileState = "skipped-preexisting"
	StateUploading          FileState = "uploading"
	StateUploaded           FileState = "uploaded"
	StateRelocated          FileState = "relocated"
	StateRelocateFailed     FileState = "relocate-failed"
	StateUploadFailed       FileState = "upload-failed"
)

var fileStateLabels = map[FileState]string{
	StateDiscovered:         "Discovered",
	StateSkippedPreexisting: "Already archived",
	StateUploading:          "Uploading",
	StateUploaded:           "Uploaded",
	StateRelocated:          "Relocated",
	StateRelocateFailed:     "Relocation failed",
	StateUploadFailed:       "Upload failed",
}

// Label returns a human-readable label for the state.
func (s FileState) Label() string {
	if label, ok := fileStateLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// Terminal reports whether the state can end a file's run. Uploaded is
// terminal only when no archive folder is configured.
func (s FileState) Terminal() bool {
	switch s {
	case StateDiscovered, StateUploading:
		return false
	}
	_, known := fileStateLabels[s]
	return known
}

// Failed reports whether the state counts against the run.
func (s FileState) Failed() bool {
	return s == StateUploadFailed
}

// ParseFileState returns the state for a given value (case-insensitive).
func ParseFileState(value string) (FileState, bool) {
	s := FileState(strings.ToLower(strings.TrimSpace(value)))
	_, ok := fileStateLabels[s]

	return s, ok
}
