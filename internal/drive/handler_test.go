package drive

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ListFilesDefaultsToSourceFolder(t *testing.T) {
	fake := newFakeDrive()
	fake.pages[""] = listPage{Files: []map[string]any{pdf("a", "a.pdf")}}
	router := NewHandler(newTestService(t, fake), "src").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		FolderID string `json:"folder_id"`
		Files    []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "src", body.FolderID)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "a", body.Files[0].ID)
	assert.Contains(t, fake.listQueries[0].Get("q"), "'src' in parents")
}

func TestHandler_ListFilesBadLimit(t *testing.T) {
	router := NewHandler(newTestService(t, newFakeDrive()), "src").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?limit=-1", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ResolveFolder(t *testing.T) {
	fake := newFakeDrive()
	fake.folders["root/Inbox"] = "inbox-id"
	router := NewHandler(newTestService(t, fake), "src").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/folders/resolve?path=Inbox", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"path":"Inbox","folder_id":"inbox-id"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/folders/resolve?path=Nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/folders/resolve", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_DownloadFile(t *testing.T) {
	fake := newFakeDrive()
	fake.contents["a"] = []byte("%PDF")
	router := NewHandler(newTestService(t, fake), "src").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/download?fileId=a", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String())
}
