package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"sportnews/internal/media"
	"sportnews/internal/model"
	"sportnews/internal/store"
)

type landingData struct {
	About    model.About     `json:"about"`
	News     []model.News    `json:"news"`
	Contacts []model.Contact `json:"contacts"`
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	news, err := store.ListNews(r.Context(), a.db)
	if err != nil {
		http.Error(w, "failed to load news", http.StatusInternalServerError)

		return
	}

	contacts, err := store.ListContacts(r.Context(), a.db)
	if err != nil {
		http.Error(w, "failed to load contacts", http.StatusInternalServerError)

		return
	}

	about, err := store.GetAbout(r.Context(), a.db)
	if err != nil {
		http.Error(w, "failed to load about", http.StatusInternalServerError)

		return
	}

	if news == nil {
		news = []model.News{}
	}

	if contacts == nil {
		contacts = []model.Contact{}
	}

	a.renderJSON(w, http.StatusOK, landingData{
		News:     news,
		Contacts: contacts,
		About:    model.About{ID: 1, Content: about},
	})
}

func (a *App) handleGetNews(w http.ResponseWriter, r *http.Request) {
	newsID, ok := pathID(r, "newsID")
	if !ok {
		http.NotFound(w, r)

		return
	}

	item, err := store.GetNews(r.Context(), a.db, newsID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "news not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to load news", http.StatusInternalServerError)

		return
	}

	a.renderJSON(w, http.StatusOK, item)
}

func (a *App) handleAddNews(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)

		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))

	if title == "" || content == "" {
		http.Error(w, "title and content are required", http.StatusBadRequest)

		return
	}

	attached, err := a.storeUploadedMedia(r)
	if err != nil {
		if errors.Is(err, errUploadTypeNotAllowed) {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		slog.Error("store uploaded media failed", "err", err)
		http.Error(w, "failed to store media file", http.StatusInternalServerError)

		return
	}

	item := model.News{
		Title:   title,
		Content: content,
		Source:  model.SourceManual,
		Media:   attached,
	}

	newsID, err := store.CreateNews(r.Context(), a.db, &item)
	if err != nil {
		slog.Error("create news failed", "err", err)
		a.deleteMediaFiles(attached)
		http.Error(w, "failed to create news", http.StatusInternalServerError)

		return
	}

	created, err := store.GetNews(r.Context(), a.db, newsID)
	if err != nil {
		http.Error(w, "failed to load created news", http.StatusInternalServerError)

		return
	}

	slog.Info("news created", "news_id", newsID, "media", len(attached))
	a.renderJSON(w, http.StatusCreated, created)
}

func (a *App) handleEditNews(w http.ResponseWriter, r *http.Request) {
	newsID, ok := pathID(r, "newsID")
	if !ok {
		http.NotFound(w, r)

		return
	}

	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)

		return
	}

	existing, err := store.GetNews(r.Context(), a.db, newsID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "news not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to load news", http.StatusInternalServerError)

		return
	}

	existing.Title = strings.TrimSpace(r.FormValue("title"))
	existing.Content = strings.TrimSpace(r.FormValue("content"))

	if existing.Title == "" || existing.Content == "" {
		http.Error(w, "title and content are required", http.StatusBadRequest)

		return
	}

	if hasUploadedMedia(r) {
		attached, mediaErr := a.storeUploadedMedia(r)
		if mediaErr != nil {
			if errors.Is(mediaErr, errUploadTypeNotAllowed) {
				http.Error(w, mediaErr.Error(), http.StatusBadRequest)

				return
			}

			slog.Error("store uploaded media failed", "err", mediaErr)
			http.Error(w, "failed to store media file", http.StatusInternalServerError)

			return
		}

		// Replacement media removes every previously attached file.
		a.deleteMediaFiles(existing.Media)
		existing.Media = attached
	}

	err = store.UpdateNews(r.Context(), a.db, &existing)
	if err != nil {
		slog.Error("update news failed", "news_id", newsID, "err", err)
		http.Error(w, "failed to update news", http.StatusInternalServerError)

		return
	}

	slog.Info("news updated", "news_id", newsID)
	a.renderJSON(w, http.StatusOK, existing)
}

func (a *App) handleDeleteNews(w http.ResponseWriter, r *http.Request) {
	newsID, ok := pathID(r, "newsID")
	if !ok {
		http.NotFound(w, r)

		return
	}

	existing, err := store.GetNews(r.Context(), a.db, newsID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "news not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to load news", http.StatusInternalServerError)

		return
	}

	// File cleanup failures are logged, never fatal: the record goes away
	// regardless.
	a.deleteMediaFiles(existing.Media)

	err = store.DeleteNews(r.Context(), a.db, newsID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "news not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to delete news", http.StatusInternalServerError)

		return
	}

	slog.Info("news deleted", "news_id", newsID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("news deleted"))
}

func (a *App) handleRefreshNews(w http.ResponseWriter, r *http.Request) {
	a.refreshMu.Lock()
	result := a.refresher.Refresh(r.Context())
	a.refreshMu.Unlock()

	// Callers inspect the payload; the status is 200 even on failure.
	a.renderJSON(w, http.StatusOK, result)
}

func (a *App) handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	f, err := a.storage.Open(name)
	if err != nil {
		if errors.Is(err, media.ErrInvalidName) {
			http.Error(w, "invalid file name", http.StatusBadRequest)

			return
		}

		http.Error(w, "file not found", http.StatusNotFound)

		return
	}

	defer func() {
		_ = f.Close()
	}()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))

	_, err = io.Copy(w, f)
	if err != nil {
		slog.Warn("serve file copy failed", "file", name, "err", err)
	}
}

var errUploadTypeNotAllowed = errors.New("media content type is not allowed")

func hasUploadedMedia(r *http.Request) bool {
	return r.MultipartForm != nil && len(r.MultipartForm.File["mediaFile"]) > 0
}

// storeUploadedMedia validates and persists every uploaded mediaFile part,
// in form order. The content-type allow-list applies to manual uploads
// only.
func (a *App) storeUploadedMedia(r *http.Request) ([]model.Media, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File["mediaFile"]
	attached := make([]model.Media, 0, len(headers))

	for _, header := range headers {
		contentType := header.Header.Get("Content-Type")
		if !a.cfg.UploadTypeAllowed(contentType) {
			a.deleteMediaFiles(attached)

			return nil, fmt.Errorf("%w: %s", errUploadTypeNotAllowed, contentType)
		}

		item, err := a.storeOneUpload(header, contentType)
		if err != nil {
			a.deleteMediaFiles(attached)

			return nil, err
		}

		attached = append(attached, item)
	}

	return attached, nil
}

func (a *App) storeOneUpload(header *multipart.FileHeader, contentType string) (model.Media, error) {
	part, err := header.Open()
	if err != nil {
		return model.Media{}, fmt.Errorf("open uploaded file: %w", err)
	}

	defer func() {
		_ = part.Close()
	}()

	name, err := a.storage.SaveStream(part, contentType)
	if err != nil {
		return model.Media{}, fmt.Errorf("store uploaded file: %w", err)
	}

	return model.Media{
		FileName: name,
		FileType: contentType,
		FilePath: "/files/" + name,
	}, nil
}

func (a *App) deleteMediaFiles(items []model.Media) {
	for _, item := range items {
		err := a.storage.Delete(item.FileName)
		if err != nil {
			slog.Error("delete media file failed", "file", item.FileName, "err", err)
		}
	}
}

func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}
