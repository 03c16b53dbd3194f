package drive

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/docsync/internal/domain"
	"github.com/gorilla/mux"
)

const defaultListLimit = 100

type Handler struct {
	service       *Service
	defaultFolder string
}

func NewHandler(service *Service, defaultFolder string) *Handler {
	return &Handler{
		service:       service,
		defaultFolder: defaultFolder,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods("GET")
	router.HandleFunc("/api/drive/folders/resolve", h.ResolveFolder).Methods("GET")
}

// Router returns a mux router with the Drive routes registered.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")
	folderPath := query.Get("path")

	var err error
	if folderPath != "" {
		folderID, err = h.service.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if folderID == "" {
		folderID = h.defaultFolder
	}

	limit := defaultListLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	files, err := h.service.ListPDFFiles(r.Context(), folderID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		FolderID string              `json:"folder_id"`
		Files    []domain.SourceFile `json:"files"`
	}{folderID, files})
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		http.Error(w, "fileId parameter is required", http.StatusBadRequest)
		return
	}

	data, err := h.service.Content(r.Context(), fileID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", domain.PDFMimeType)
	w.Header().Set("Content-Disposition", "attachment; filename="+fileID+".pdf")
	_, _ = w.Write(data)
}

func (h *Handler) ResolveFolder(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path parameter is required", http.StatusBadRequest)
		return
	}

	id, err := h.service.FindFolderByPath(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"path": path, "folder_id": id})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrFolderNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
