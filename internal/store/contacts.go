package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"sportnews/internal/model"
)

// CreateContact inserts a contact row and returns the assigned identifier.
func CreateContact(ctx context.Context, db *sql.DB, contact *model.Contact) (int64, error) {
	ctx = contextOrBackground(ctx)

	res, err := db.ExecContext(ctx, `
INSERT INTO contacts (title, content, type)
VALUES (?, ?, ?)
`, contact.Title, contact.Content, string(contact.Type))
	if err != nil {
		return 0, fmt.Errorf("insert contact row: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted contact id: %w", err)
	}

	return id, nil
}

// GetContact is part of the store package API.
func GetContact(ctx context.Context, db *sql.DB, contactID int64) (model.Contact, error) {
	ctx = contextOrBackground(ctx)

	row := db.QueryRowContext(ctx, `
SELECT id, title, content, type
FROM contacts
WHERE id = ?
`, contactID)

	var (
		id          int64
		title       string
		content     string
		contactType string
	)

	err := row.Scan(&id, &title, &content, &contactType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, fmt.Errorf("contact %d: %w", contactID, ErrNotFound)
		}

		return model.Contact{}, fmt.Errorf("scan contact %d: %w", contactID, err)
	}

	return model.Contact{
		ID:      id,
		Title:   title,
		Content: content,
		Type:    model.ContactType(contactType),
	}, nil
}

// ListContacts is part of the store package API.
func ListContacts(ctx context.Context, db *sql.DB) ([]model.Contact, error) {
	ctx = contextOrBackground(ctx)

	rows, err := db.QueryContext(ctx, `
SELECT id, title, content, type
FROM contacts
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}

	defer func() {
		closeErr := rows.Close()
		if closeErr != nil {
			slog.Warn("rows close failed", "err", closeErr)
		}
	}()

	var contacts []model.Contact

	for rows.Next() {
		var (
			id          int64
			title       string
			content     string
			contactType string
		)

		scanErr := rows.Scan(&id, &title, &content, &contactType)
		if scanErr != nil {
			return nil, fmt.Errorf("scan contact row: %w", scanErr)
		}

		contacts = append(contacts, model.Contact{
			ID:      id,
			Title:   title,
			Content: content,
			Type:    model.ContactType(contactType),
		})
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("iterate contact rows: %w", rowsErr)
	}

	return contacts, nil
}

// UpdateContact replaces title, content, and type of an existing row.
func UpdateContact(ctx context.Context, db *sql.DB, contact *model.Contact) error {
	ctx = contextOrBackground(ctx)

	res, err := db.ExecContext(ctx, `
UPDATE contacts
SET title = ?, content = ?, type = ?
WHERE id = ?
`, contact.Title, contact.Content, string(contact.Type), contact.ID)
	if err != nil {
		return fmt.Errorf("update contact %d: %w", contact.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("count updated contact rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("contact %d: %w", contact.ID, ErrNotFound)
	}

	return nil
}

// DeleteContact is part of the store package API.
func DeleteContact(ctx context.Context, db *sql.DB, contactID int64) error {
	ctx = contextOrBackground(ctx)

	res, err := db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", contactID)
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", contactID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("count deleted contact rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("contact %d: %w", contactID, ErrNotFound)
	}

	return nil
}
