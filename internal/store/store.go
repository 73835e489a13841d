// Package store provides SQLite-backed persistence for news, contacts, and
// the about record.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Register the sqlite database/sql driver.

	"sportnews/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ErrMediaDelimiter is returned when a media value contains the reserved
// list delimiter.
var ErrMediaDelimiter = errors.New("media value contains reserved delimiter")

const mediaDelimiter = ","

// Open is part of the store package API.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite behaves best with a single connection for this workload.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;")
	if err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return db, nil
}

// Init is part of the store package API.
func Init(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS news (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	source_type TEXT NOT NULL,
	source_id TEXT,
	media_file_name TEXT,
	media_file_type TEXT,
	media_file_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_news_created_at ON news(created_at);

CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS about (
	id INTEGER PRIMARY KEY,
	content TEXT NOT NULL
);
`

	_, err := db.ExecContext(context.Background(), schema)
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateNews inserts a news row and returns the assigned identifier. A zero
// CreatedAt is defaulted to the current time, mirroring a creation-time
// storage default.
func CreateNews(ctx context.Context, db *sql.DB, item *model.News) (int64, error) {
	return createNews(contextOrBackground(ctx), db, item)
}

// CreateNewsTx is CreateNews inside an open transaction.
func CreateNewsTx(ctx context.Context, tx *sql.Tx, item *model.News) (int64, error) {
	return createNews(contextOrBackground(ctx), tx, item)
}

func createNews(ctx context.Context, q querier, item *model.News) (int64, error) {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	names, types, paths, err := joinMedia(item.Media)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `
INSERT INTO news (title, content, created_at, source_type, source_id, media_file_name, media_file_type, media_file_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		item.Title,
		item.Content,
		createdAt,
		string(item.Source),
		nullString(item.SourceID),
		names,
		types,
		paths,
	)
	if err != nil {
		return 0, fmt.Errorf("insert news row: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted news id: %w", err)
	}

	return id, nil
}

// GetNews is part of the store package API.
func GetNews(ctx context.Context, db *sql.DB, newsID int64) (model.News, error) {
	ctx = contextOrBackground(ctx)

	row := db.QueryRowContext(ctx, `
SELECT id, title, content, created_at, source_type, source_id,
       media_file_name, media_file_type, media_file_path
FROM news
WHERE id = ?
`, newsID)

	item, err := scanNews(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.News{}, fmt.Errorf("news %d: %w", newsID, ErrNotFound)
		}

		return model.News{}, fmt.Errorf("scan news %d: %w", newsID, err)
	}

	return item, nil
}

// ListNews returns all news sorted by creation time descending.
func ListNews(ctx context.Context, db *sql.DB) ([]model.News, error) {
	ctx = contextOrBackground(ctx)

	rows, err := db.QueryContext(ctx, `
SELECT id, title, content, created_at, source_type, source_id,
       media_file_name, media_file_type, media_file_path
FROM news
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}

	defer func() {
		closeErr := rows.Close()
		if closeErr != nil {
			slog.Warn("rows close failed", "err", closeErr)
		}
	}()

	var items []model.News

	for rows.Next() {
		item, scanErr := scanNews(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan news row: %w", scanErr)
		}

		items = append(items, item)
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("iterate news rows: %w", rowsErr)
	}

	slog.Info("db list news", "count", len(items))

	return items, nil
}

// UpdateNews replaces title, content, and media of an existing row.
func UpdateNews(ctx context.Context, db *sql.DB, item *model.News) error {
	ctx = contextOrBackground(ctx)

	names, types, paths, err := joinMedia(item.Media)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
UPDATE news
SET title = ?, content = ?, media_file_name = ?, media_file_type = ?, media_file_path = ?
WHERE id = ?
`, item.Title, item.Content, names, types, paths, item.ID)
	if err != nil {
		return fmt.Errorf("update news %d: %w", item.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("count updated news rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("news %d: %w", item.ID, ErrNotFound)
	}

	return nil
}

// DeleteNews is part of the store package API.
func DeleteNews(ctx context.Context, db *sql.DB, newsID int64) error {
	ctx = contextOrBackground(ctx)

	res, err := db.ExecContext(ctx, "DELETE FROM news WHERE id = ?", newsID)
	if err != nil {
		return fmt.Errorf("delete news %d: %w", newsID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("count deleted news rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("news %d: %w", newsID, ErrNotFound)
	}

	return nil
}

// DeleteNewsBySource removes all news rows with the given source kind and
// returns the number removed.
func DeleteNewsBySource(ctx context.Context, db *sql.DB, source model.NewsSource) (int64, error) {
	return deleteNewsBySource(contextOrBackground(ctx), db, source)
}

// DeleteNewsBySourceTx is DeleteNewsBySource inside an open transaction.
func DeleteNewsBySourceTx(ctx context.Context, tx *sql.Tx, source model.NewsSource) (int64, error) {
	return deleteNewsBySource(contextOrBackground(ctx), tx, source)
}

func deleteNewsBySource(ctx context.Context, q querier, source model.NewsSource) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM news WHERE source_type = ?", string(source))
	if err != nil {
		return 0, fmt.Errorf("delete news by source %s: %w", source, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted news rows: %w", err)
	}

	return deleted, nil
}

// GetNewsCreatedAt reads back the persisted creation timestamp.
func GetNewsCreatedAt(ctx context.Context, db *sql.DB, newsID int64) (time.Time, error) {
	ctx = contextOrBackground(ctx)

	var createdAt time.Time

	err := db.QueryRowContext(ctx, "SELECT created_at FROM news WHERE id = ?", newsID).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, fmt.Errorf("news %d: %w", newsID, ErrNotFound)
		}

		return time.Time{}, fmt.Errorf("lookup created_at for news %d: %w", newsID, err)
	}

	return createdAt, nil
}

// SetNewsCreatedAt force-corrects the creation timestamp of one row.
func SetNewsCreatedAt(ctx context.Context, db *sql.DB, newsID int64, createdAt time.Time) error {
	ctx = contextOrBackground(ctx)

	_, err := db.ExecContext(ctx, "UPDATE news SET created_at = ? WHERE id = ?", createdAt, newsID)
	if err != nil {
		return fmt.Errorf("correct created_at for news %d: %w", newsID, err)
	}

	return nil
}

func scanNews(scan func(dest ...any) error) (model.News, error) {
	var (
		id         int64
		title      string
		content    string
		createdAt  time.Time
		sourceType string
		sourceID   sql.NullString
		mediaNames sql.NullString
		mediaTypes sql.NullString
		mediaPaths sql.NullString
	)

	err := scan(&id, &title, &content, &createdAt, &sourceType, &sourceID, &mediaNames, &mediaTypes, &mediaPaths)
	if err != nil {
		return model.News{}, err
	}

	media, err := splitMedia(mediaNames, mediaTypes, mediaPaths)
	if err != nil {
		return model.News{}, fmt.Errorf("news %d: %w", id, err)
	}

	return model.News{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: createdAt,
		Source:    model.NewsSource(sourceType),
		SourceID:  sourceID.String,
		Media:     media,
	}, nil
}

// joinMedia flattens the media slice into the three delimited columns. The
// delimiter is reserved: values containing it are rejected rather than
// silently corrupting the parallel lists.
//
//nolint:gocritic // Triple return mirrors the three columns it feeds.
func joinMedia(media []model.Media) (any, any, any, error) {
	if len(media) == 0 {
		return nil, nil, nil, nil
	}

	names := make([]string, 0, len(media))
	types := make([]string, 0, len(media))
	paths := make([]string, 0, len(media))

	for _, m := range media {
		if strings.Contains(m.FileName, mediaDelimiter) ||
			strings.Contains(m.FileType, mediaDelimiter) ||
			strings.Contains(m.FilePath, mediaDelimiter) {
			return nil, nil, nil, ErrMediaDelimiter
		}

		names = append(names, m.FileName)
		types = append(types, m.FileType)
		paths = append(paths, m.FilePath)
	}

	return strings.Join(names, mediaDelimiter),
		strings.Join(types, mediaDelimiter),
		strings.Join(paths, mediaDelimiter),
		nil
}

func splitMedia(names, types, paths sql.NullString) ([]model.Media, error) {
	if !names.Valid || strings.TrimSpace(names.String) == "" {
		return nil, nil
	}

	nameList := strings.Split(names.String, mediaDelimiter)
	typeList := strings.Split(types.String, mediaDelimiter)
	pathList := strings.Split(paths.String, mediaDelimiter)

	if len(nameList) != len(typeList) || len(nameList) != len(pathList) {
		return nil, errors.New("media columns misaligned")
	}

	media := make([]model.Media, 0, len(nameList))
	for i := range nameList {
		media = append(media, model.Media{
			FileName: strings.TrimSpace(nameList[i]),
			FileType: strings.TrimSpace(typeList[i]),
			FilePath: strings.TrimSpace(pathList[i]),
		})
	}

	return media, nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}

func nullString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	return value
}
