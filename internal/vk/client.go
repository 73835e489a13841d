package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"sportnews/internal/config"
	"sportnews/internal/model"
)

const apiVersion = "5.131"

// ErrGroupNotConfigured is returned when a fetch is attempted without a
// configured group identifier.
var ErrGroupNotConfigured = errors.New("vk group id is not configured")

// Client fetches wall posts for one configured group and drives the
// normalizer over each of them.
type Client struct {
	normalizer *Normalizer
	client     *http.Client
	baseURL    string
	appSecret  string
	groupID    int
	pageSize   int
}

// NewClient is part of the vk package API.
func NewClient(cfg *config.Config, normalizer *Normalizer) *Client {
	return &Client{
		normalizer: normalizer,
		client:     &http.Client{Timeout: cfg.APITimeout()},
		baseURL:    cfg.VK.BaseURL,
		appSecret:  cfg.VK.AppSecret,
		groupID:    cfg.VK.GroupID,
		pageSize:   cfg.VK.PageSize,
	}
}

// FetchPosts retrieves one page of wall posts, most recent first, and
// returns the normalized news items in feed order. Posts whose identifier
// repeats within the batch are skipped; posts without usable text produce
// nothing. An API-level error object fails the whole fetch.
func (c *Client) FetchPosts(ctx context.Context) ([]model.News, error) {
	if c.groupID == 0 {
		return nil, ErrGroupNotConfigured
	}

	wall, err := c.fetchWall(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.News, 0, len(wall.Items))
	seen := make(map[int64]struct{})

	for _, post := range wall.Items {
		if _, dup := seen[post.ID]; dup {
			slog.Warn("duplicate post in batch", "post_id", post.ID)

			continue
		}

		seen[post.ID] = struct{}{}

		item, ok := c.normalizer.Normalize(ctx, post)
		if !ok {
			slog.Info("post skipped, no usable text", "post_id", post.ID)

			continue
		}

		items = append(items, item)
	}

	slog.Info("fetched wall posts", "group_id", c.groupID, "posts", len(wall.Items), "news", len(items))

	return items, nil
}

// fetchWall calls wall.get with the negated group identifier; group IDs are
// negative in the wall API's owner addressing.
func (c *Client) fetchWall(ctx context.Context) (*wallItems, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.Itoa(-c.groupID))
	params.Set("count", strconv.Itoa(c.pageSize))
	params.Set("v", apiVersion)

	if c.appSecret != "" {
		params.Set("access_token", c.appSecret)
	}

	target := c.baseURL + "/wall.get?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build wall request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch wall posts: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d from wall api", resp.StatusCode)
	}

	var wall wallResponse

	err = json.NewDecoder(resp.Body).Decode(&wall)
	if err != nil {
		return nil, fmt.Errorf("parse wall response: %w", err)
	}

	if wall.Error != nil {
		return nil, fmt.Errorf("fetch wall posts: %w", wall.Error)
	}

	if wall.Response == nil {
		return nil, errors.New("wall response carries no items")
	}

	return wall.Response, nil
}
