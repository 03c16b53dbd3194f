package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type listPage struct {
	Files         []map[string]any `json:"files"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// fakeDrive serves the subset of the Drive v3 API the service uses.
type fakeDrive struct {
	mu sync.Mutex

	pages    map[string]listPage
	folders  map[string]string
	contents map[string][]byte
	parents  map[string][]string

	listQueries []url.Values
	updates     []url.Values
}

var nameQuery = regexp.MustCompile(`'([^']*)' in parents and name='([^']*)'`)

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		pages:    map[string]listPage{},
		folders:  map[string]string{},
		contents: map[string][]byte{},
		parents:  map[string][]string{},
	}
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/files" && r.Method == http.MethodGet {
		f.listQueries = append(f.listQueries, q)
		if m := nameQuery.FindStringSubmatch(q.Get("q")); m != nil {
			resp := listPage{Files: []map[string]any{}}
			if id, ok := f.folders[m[1]+"/"+m[2]]; ok {
				resp.Files = append(resp.Files, map[string]any{"id": id, "name": m[2]})
			}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		page, ok := f.pages[q.Get("pageToken")]
		if !ok {
			page = listPage{Files: []map[string]any{}}
		}
		_ = json.NewEncoder(w).Encode(page)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/files/")
	switch r.Method {
	case http.MethodGet:
		if q.Get("alt") == "media" {
			data, ok := f.contents[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(data)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "parents": f.parents[id]})
	case http.MethodPatch:
		f.updates = append(f.updates, q)
		if _, ok := f.parents[id]; !ok {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"insufficient permissions"}}`))
			return
		}
		f.parents[id] = []string{q.Get("addParents")}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "parents": f.parents[id]})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestService(t *testing.T, fake *fakeDrive) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewServiceWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s
}

func pdf(id, name string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"mimeType":     "application/pdf",
		"modifiedTime": "2024-03-01T10:30:00.000Z",
		"size":         "1234",
	}
}
