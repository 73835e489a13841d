package vk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sportnews/internal/model"
	"sportnews/internal/store"
)

// Fetcher retrieves the current batch of feed-sourced news items.
type Fetcher interface {
	FetchPosts(ctx context.Context) ([]model.News, error)
}

// RefreshResult is the structured outcome of one refresh run.
type RefreshResult struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
	TotalCount   int    `json:"totalCount"`
	SavedCount   int    `json:"currentCount"`
	Success      bool   `json:"success"`
}

// Refresher replaces all feed-sourced news with a freshly fetched batch.
type Refresher struct {
	db      *sql.DB
	fetcher Fetcher
}

// NewRefresher is part of the vk package API.
func NewRefresher(db *sql.DB, fetcher Fetcher) *Refresher {
	return &Refresher{db: db, fetcher: fetcher}
}

// Refresh fetches the feed first, then deletes all feed-sourced news and
// inserts the new batch inside one transaction. A failed fetch therefore
// never touches stored state; a failed individual insert is skipped without
// aborting the batch. Each saved row's creation timestamp is verified
// afterwards and force-corrected once if storage overwrote it.
func (r *Refresher) Refresh(ctx context.Context) RefreshResult {
	items, err := r.fetcher.FetchPosts(ctx)
	if err != nil {
		slog.Error("refresh fetch failed", "err", err)

		return failedResult(fmt.Errorf("fetch feed: %w", err))
	}

	deleted, saved, err := r.replaceFeedNews(ctx, items)
	if err != nil {
		slog.Error("refresh replace failed", "err", err)

		return failedResult(err)
	}

	r.verifyCreatedAt(ctx, saved)

	result := RefreshResult{
		DeletedCount: deleted,
		TotalCount:   len(items),
		SavedCount:   len(saved),
		Success:      true,
		Message:      fmt.Sprintf("news refreshed: deleted %d, added %d", deleted, len(saved)),
	}

	slog.Info("refresh complete",
		"deleted", result.DeletedCount,
		"fetched", result.TotalCount,
		"saved", result.SavedCount,
	)

	return result
}

type savedNews struct {
	createdAt time.Time
	id        int64
}

//nolint:gocritic // Pair return keeps the outcome assembly in one place.
func (r *Refresher) replaceFeedNews(ctx context.Context, items []model.News) (int64, []savedNews, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin refresh transaction: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			rollbackTx(tx)
		}
	}()

	deleted, err := store.DeleteNewsBySourceTx(ctx, tx, model.SourceFeed)
	if err != nil {
		return 0, nil, fmt.Errorf("purge feed news: %w", err)
	}

	saved := make([]savedNews, 0, len(items))

	for i := range items {
		item := items[i]

		id, saveErr := store.CreateNewsTx(ctx, tx, &item)
		if saveErr != nil {
			slog.Error("save news item failed", "source_id", item.SourceID, "err", saveErr)

			continue
		}

		saved = append(saved, savedNews{id: id, createdAt: item.CreatedAt})
	}

	err = tx.Commit()
	if err != nil {
		return 0, nil, fmt.Errorf("commit refresh transaction: %w", err)
	}

	committed = true

	return deleted, saved, nil
}

// verifyCreatedAt re-reads each persisted creation timestamp and applies at
// most one corrective write when storage overwrote it.
func (r *Refresher) verifyCreatedAt(ctx context.Context, saved []savedNews) {
	for _, row := range saved {
		if row.createdAt.IsZero() {
			continue
		}

		persisted, err := store.GetNewsCreatedAt(ctx, r.db, row.id)
		if err != nil {
			slog.Error("created_at verification failed", "news_id", row.id, "err", err)

			continue
		}

		if persisted.Equal(row.createdAt) {
			continue
		}

		slog.Warn("created_at mismatch, correcting",
			"news_id", row.id,
			"persisted", persisted,
			"intended", row.createdAt,
		)

		err = store.SetNewsCreatedAt(ctx, r.db, row.id, row.createdAt)
		if err != nil {
			slog.Error("created_at correction failed", "news_id", row.id, "err", err)
		}
	}
}

func failedResult(err error) RefreshResult {
	return RefreshResult{
		Success: false,
		Message: "error refreshing news: " + err.Error(),
	}
}

func rollbackTx(tx *sql.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("tx rollback failed", "err", err)
	}
}
