//nolint:testpackage // Handler tests exercise package-internal helpers directly.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"sportnews/internal/config"
	"sportnews/internal/media"
	"sportnews/internal/model"
	"sportnews/internal/store"
	"sportnews/internal/testutil"
	"sportnews/internal/vk"
)

type stubRefresher struct {
	result vk.RefreshResult
	calls  int
}

func (s *stubRefresher) Refresh(context.Context) vk.RefreshResult {
	s.calls++
	return s.result
}

func newTestApp(t *testing.T) (*App, *stubRefresher) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Upload.Dir = t.TempDir()
	cfg.Upload.AllowedTypes = []string{"image/jpeg", "image/png"}
	refresher := &stubRefresher{}
	app := New(testutil.OpenTestDB(t), cfg, media.NewStorage(cfg.Upload.Dir), refresher)
	return app, refresher
}

func doRequest(t *testing.T, app *App, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, req)
	return rec
}

func newsForm(t *testing.T, title, content string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if title != "" {
		if err := form.WriteField("title", title); err != nil {
			t.Fatalf("WriteField title: %v", err)
		}
	}
	if content != "" {
		if err := form.WriteField("content", content); err != nil {
			t.Fatalf("WriteField content: %v", err)
		}
	}
	for contentType, data := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="mediaFile"; filename="upload"`)
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write([]byte(data)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &body, form.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestIndexAggregatesSiteData(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)
	ctx := context.Background()

	item := model.News{Title: "Season opener", Content: "body", Source: model.SourceManual}
	if _, err := store.CreateNews(ctx, app.db, &item); err != nil {
		t.Fatalf("store.CreateNews: %v", err)
	}
	contact := model.Contact{Title: "Ticket office", Content: "+7 900", Type: model.ContactPhone}
	if _, err := store.CreateContact(ctx, app.db, &contact); err != nil {
		t.Fatalf("store.CreateContact: %v", err)
	}
	if err := store.UpdateAbout(ctx, app.db, "Our club."); err != nil {
		t.Fatalf("store.UpdateAbout: %v", err)
	}

	rec := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var landing landingData
	if err := json.Unmarshal(rec.Body.Bytes(), &landing); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(landing.News) != 1 || len(landing.Contacts) != 1 || landing.About.Content != "Our club." {
		t.Errorf("landing = %+v", landing)
	}
}

func TestIndexEmptySiteUsesEmptyLists(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"news":[]`) || !strings.Contains(body, `"contacts":[]`) {
		t.Errorf("empty collections not rendered as []: %s", body)
	}
}

func TestGetNewsNotFound(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/news/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/news/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric id status = %d, want 404", rec.Code)
	}
}

func TestAddNewsWithUpload(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	body, contentType := newsForm(t, "Cup final", "We won.", map[string]string{"image/jpeg": "jpeg bytes"})
	req := httptest.NewRequest(http.MethodPost, "/news/add", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, app, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var created model.News
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.Source != model.SourceManual {
		t.Errorf("Source = %s, want MANUAL", created.Source)
	}
	if len(created.Media) != 1 {
		t.Fatalf("media count = %d, want 1", len(created.Media))
	}
	if created.Media[0].FilePath != "/files/"+created.Media[0].FileName {
		t.Errorf("FilePath = %q", created.Media[0].FilePath)
	}

	fileReq := httptest.NewRequest(http.MethodGet, created.Media[0].FilePath, nil)
	fileRec := doRequest(t, app, fileReq)
	if fileRec.Code != http.StatusOK || fileRec.Body.String() != "jpeg bytes" {
		t.Errorf("file fetch = %d %q", fileRec.Code, fileRec.Body.String())
	}
}

func TestAddNewsValidation(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	body, contentType := newsForm(t, "", "content only", nil)
	req := httptest.NewRequest(http.MethodPost, "/news/add", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, app, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d, want 400", rec.Code)
	}
}

func TestAddNewsRejectsUploadType(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	body, contentType := newsForm(t, "Clip", "watch", map[string]string{"video/mp4": "mp4 bytes"})
	req := httptest.NewRequest(http.MethodPost, "/news/add", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(t, app, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	entries, err := os.ReadDir(app.storage.Dir())
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d leftover files", len(entries))
	}
}

func TestEditNewsReplacesMedia(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	body, contentType := newsForm(t, "Draft", "old", map[string]string{"image/jpeg": "old bytes"})
	req := httptest.NewRequest(http.MethodPost, "/news/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(t, app, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	var created model.News
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	oldFile := created.Media[0].FileName

	body, contentType = newsForm(t, "Final", "new", map[string]string{"image/png": "new bytes"})
	req = httptest.NewRequest(http.MethodPut, "/news/"+itoa(created.ID), body)
	req.Header.Set("Content-Type", contentType)
	rec = doRequest(t, app, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d: %s", rec.Code, rec.Body.String())
	}

	var updated model.News
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Title != "Final" || len(updated.Media) != 1 || updated.Media[0].FileName == oldFile {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := os.Stat(filepath.Join(app.storage.Dir(), oldFile)); !os.IsNotExist(err) {
		t.Errorf("replaced file still present: %v", err)
	}
}

func TestEditNewsKeepsMediaWithoutUpload(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	body, contentType := newsForm(t, "Draft", "old", map[string]string{"image/jpeg": "bytes"})
	req := httptest.NewRequest(http.MethodPost, "/news/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(t, app, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	var created model.News
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	body, contentType = newsForm(t, "Renamed", "still old media", nil)
	req = httptest.NewRequest(http.MethodPut, "/news/"+itoa(created.ID), body)
	req.Header.Set("Content-Type", contentType)
	rec = doRequest(t, app, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d", rec.Code)
	}

	var updated model.News
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if len(updated.Media) != 1 || updated.Media[0].FileName != created.Media[0].FileName {
		t.Errorf("media = %+v, want original attachment kept", updated.Media)
	}
}

func TestDeleteNewsRemovesRecordAndFile(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	body, contentType := newsForm(t, "Doomed", "body", map[string]string{"image/jpeg": "bytes"})
	req := httptest.NewRequest(http.MethodPost, "/news/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(t, app, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	var created model.News
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/news/"+itoa(created.ID), nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "news deleted") {
		t.Fatalf("delete = %d %q", rec.Code, rec.Body.String())
	}

	if _, err := store.GetNews(context.Background(), app.db, created.ID); err == nil {
		t.Error("record still present after delete")
	}
	if _, err := os.Stat(filepath.Join(app.storage.Dir(), created.Media[0].FileName)); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/news/"+itoa(created.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestDeleteNewsSurvivesFileDeleteFailure(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)
	ctx := context.Background()

	item := model.News{
		Title:   "Stuck media",
		Content: "body",
		Source:  model.SourceManual,
		Media: []model.Media{
			{FileName: "stuck.jpg", FileType: "image/jpeg", FilePath: "/files/stuck.jpg"},
			{FileName: "loose.jpg", FileType: "image/jpeg", FilePath: "/files/loose.jpg"},
		},
	}
	newsID, err := store.CreateNews(ctx, app.db, &item)
	if err != nil {
		t.Fatalf("store.CreateNews: %v", err)
	}

	// A non-empty directory under the first media name makes its removal
	// fail; the second is a regular file that must still be cleaned up.
	blocker := filepath.Join(app.storage.Dir(), "stuck.jpg")
	if err := os.MkdirAll(filepath.Join(blocker, "inner"), 0o755); err != nil {
		t.Fatalf("mkdir blocker: %v", err)
	}
	loose := filepath.Join(app.storage.Dir(), "loose.jpg")
	if err := os.WriteFile(loose, []byte("bytes"), 0o600); err != nil {
		t.Fatalf("write media file: %v", err)
	}

	rec := doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/news/"+itoa(newsID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := store.GetNews(ctx, app.db, newsID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetNews after delete = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(loose); !os.IsNotExist(err) {
		t.Errorf("second media file still present: %v", err)
	}
}

func TestRefreshAlwaysResponds200(t *testing.T) {
	t.Parallel()

	app, refresher := newTestApp(t)
	refresher.result = vk.RefreshResult{Success: false, Message: "error refreshing news: wall api unreachable"}

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		rec := doRequest(t, app, httptest.NewRequest(method, "/news/refresh", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", method, rec.Code)
		}

		var result vk.RefreshResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if result.Success {
			t.Error("Success = true, want failure payload")
		}
	}

	if refresher.calls != 2 {
		t.Errorf("refresher calls = %d, want 2", refresher.calls)
	}
}

func TestServeFileErrors(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/files/absent.jpg", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/files/..%2Fsecret", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d, want 400", rec.Code)
	}
}

func TestContactsOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/contacts/add",
		strings.NewReader(`{"title":"Press","content":"press@club.example","type":"email"}`))
	rec := doRequest(t, app, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}

	var created model.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 || created.Type != model.ContactEmail {
		t.Errorf("created = %+v", created)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/contacts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var contacts []model.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &contacts); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("contacts = %+v", contacts)
	}

	req = httptest.NewRequest(http.MethodPut, "/contacts/"+itoa(created.ID),
		strings.NewReader(`{"title":"Press office","content":"media@club.example","type":"email"}`))
	rec = doRequest(t, app, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/contacts/"+itoa(created.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got model.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode contact: %v", err)
	}
	if got.Title != "Press office" {
		t.Errorf("Title = %q", got.Title)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/contacts/"+itoa(created.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/contacts/"+itoa(created.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestContactValidation(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/contacts/add", strings.NewReader(`{"content":"x"}`))
	rec := doRequest(t, app, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/contacts/add", strings.NewReader(`{"title":`))
	rec = doRequest(t, app, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/contacts/424242",
		strings.NewReader(`{"title":"Ghost","content":"x","type":"other"}`))
	rec = doRequest(t, app, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("edit missing status = %d, want 404", rec.Code)
	}
}

func TestAboutOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/about", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var about model.About
	if err := json.Unmarshal(rec.Body.Bytes(), &about); err != nil {
		t.Fatalf("decode about: %v", err)
	}
	if about.Content != "" {
		t.Errorf("initial about = %q, want empty", about.Content)
	}

	req := httptest.NewRequest(http.MethodPut, "/about", strings.NewReader(`{"content":"Founded in 1957."}`))
	rec = doRequest(t, app, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}

	rec = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/about", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &about); err != nil {
		t.Fatalf("decode about: %v", err)
	}
	if about.Content != "Founded in 1957." {
		t.Errorf("about = %q", about.Content)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.RateLimitRPS = 1
	cfg.Server.RateLimitBurst = 1
	cfg.Upload.Dir = t.TempDir()
	app := New(testutil.OpenTestDB(t), cfg, media.NewStorage(cfg.Upload.Dir), &stubRefresher{})

	first := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	second := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.Header.Set("X-Forwarded-For", "10.0.0.9")
	third := doRequest(t, app, other)
	if third.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", third.Code)
	}

	// The same client behind a different proxy chain shares one bucket.
	chained := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	chained.Header.Set("X-Forwarded-For", "10.0.0.9, 172.16.0.1")
	fourth := doRequest(t, app, chained)
	if fourth.Code != http.StatusTooManyRequests {
		t.Errorf("chained client status = %d, want 429", fourth.Code)
	}
}

func TestClientIPFirstForwardedEntry(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.9, 172.16.0.1, 192.168.0.1")
	if got := clientIP(req); got != "10.0.0.9" {
		t.Errorf("clientIP = %q, want 10.0.0.9", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.5:9999"
	if got := clientIP(req); got != "203.0.113.5" {
		t.Errorf("clientIP = %q, want 203.0.113.5", got)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
