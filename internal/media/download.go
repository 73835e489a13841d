package media

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Downloader fetches remote media and persists it through a Storage.
type Downloader struct {
	storage *Storage
	client  *http.Client
}

// NewDownloader builds a Downloader with a bounded request timeout.
func NewDownloader(storage *Storage, timeout time.Duration) *Downloader {
	return &Downloader{
		storage: storage,
		client:  &http.Client{Timeout: timeout},
	}
}

// Download sanitizes srcURL, fetches its bytes, and stores them under a new
// unique name derived from contentType. It returns the stored file name.
func (d *Downloader) Download(ctx context.Context, srcURL, contentType string) (string, error) {
	target := SanitizeURL(srcURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}

	name, err := d.storage.SaveStream(resp.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("store downloaded media: %w", err)
	}

	return name, nil
}
