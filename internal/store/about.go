package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// The about record is a singleton with a fixed identifier.
const aboutID = 1

// GetAbout returns the singleton about record, creating it with empty
// content when absent.
func GetAbout(ctx context.Context, db *sql.DB) (string, error) {
	ctx = contextOrBackground(ctx)

	var content string

	err := db.QueryRowContext(ctx, "SELECT content FROM about WHERE id = ?", aboutID).Scan(&content)
	if err == nil {
		return content, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup about record: %w", err)
	}

	_, err = db.ExecContext(ctx, "INSERT INTO about (id, content) VALUES (?, '')", aboutID)
	if err != nil {
		return "", fmt.Errorf("create empty about record: %w", err)
	}

	return "", nil
}

// UpdateAbout replaces the singleton about content, creating the record
// when absent.
func UpdateAbout(ctx context.Context, db *sql.DB, content string) error {
	ctx = contextOrBackground(ctx)

	_, err := db.ExecContext(ctx, `
INSERT INTO about (id, content)
VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET content = excluded.content
`, aboutID, content)
	if err != nil {
		return fmt.Errorf("upsert about record: %w", err)
	}

	return nil
}
