package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sportnews/internal/store"
)

type VKServer struct {
	mu       sync.RWMutex
	wallJSON string
	media    map[string][]byte
	baseURL  string
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// NewVKServer installs a fake transport that answers wall.get calls with the
// given JSON body and serves registered media URLs. It returns the server and
// the API base URL to configure the client with.
func NewVKServer(t *testing.T, wallJSON string) (*VKServer, string) {
	t.Helper()
	baseURL := "https://vk.test/" + url.PathEscape(t.Name())
	vs := &VKServer{wallJSON: wallJSON, media: make(map[string][]byte), baseURL: baseURL}
	prevTransport := http.DefaultTransport
	http.DefaultTransport = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		target := req.URL.String()
		if strings.HasPrefix(target, baseURL+"/wall.get") {
			vs.mu.RLock()
			defer vs.mu.RUnlock()
			return jsonResponse(req, vs.wallJSON), nil
		}
		vs.mu.RLock()
		data, ok := vs.media[target]
		vs.mu.RUnlock()
		if ok {
			return &http.Response{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Header:     http.Header{"Content-Type": []string{"application/octet-stream"}},
				Body:       io.NopCloser(strings.NewReader(string(data))),
				Request:    req,
			}, nil
		}
		return nil, fmt.Errorf("unexpected request url: %s", target)
	})
	t.Cleanup(func() { http.DefaultTransport = prevTransport })
	return vs, baseURL
}

func jsonResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func (v *VKServer) SetWallJSON(wallJSON string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wallJSON = wallJSON
}

// AddMedia registers downloadable bytes under a full URL and returns that URL.
func (v *VKServer) AddMedia(path string, data []byte) string {
	target := v.baseURL + "/media/" + path
	v.mu.Lock()
	defer v.mu.Unlock()
	v.media[target] = data
	return target
}

type WallPost struct {
	Text        string
	Attachments []string
	ID          int64
	Date        int64
}

// WallJSON renders a wall.get response body. Attachments entries are raw
// attachment JSON objects.
func WallJSON(posts []WallPost) string {
	var b strings.Builder
	b.WriteString(`{"response":{"items":[`)
	for i, post := range posts {
		if i > 0 {
			b.WriteString(",")
		}
		text, _ := json.Marshal(post.Text)
		b.WriteString(fmt.Sprintf(`{"id":%d,"date":%d,"text":%s`, post.ID, post.Date, text))
		if len(post.Attachments) > 0 {
			b.WriteString(`,"attachments":[`)
			b.WriteString(strings.Join(post.Attachments, ","))
			b.WriteString("]")
		}
		b.WriteString("}")
	}
	b.WriteString("]}}")
	return b.String()
}

// WallErrorJSON renders an API-level error body.
func WallErrorJSON(code int, message string) string {
	msg, _ := json.Marshal(message)
	return fmt.Sprintf(`{"error":{"error_code":%d,"error_msg":%s}}`, code, msg)
}

// PhotoAttachment renders a photo attachment with one size per width.
func PhotoAttachment(urls map[int]string) string {
	var sizes []string
	for width, u := range urls {
		sizes = append(sizes, fmt.Sprintf(`{"url":%q,"width":%d}`, u, width))
	}
	return fmt.Sprintf(`{"type":"photo","photo":{"sizes":[%s]}}`, strings.Join(sizes, ","))
}

func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := store.Init(db); err != nil {
		_ = db.Close()
		t.Fatalf("store.Init: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
