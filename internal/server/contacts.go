package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sportnews/internal/model"
	"sportnews/internal/store"
)

func (a *App) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := store.ListContacts(r.Context(), a.db)
	if err != nil {
		http.Error(w, "failed to load contacts", http.StatusInternalServerError)

		return
	}

	if contacts == nil {
		contacts = []model.Contact{}
	}

	a.renderJSON(w, http.StatusOK, contacts)
}

func (a *App) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contactID, ok := pathID(r, "contactID")
	if !ok {
		http.NotFound(w, r)

		return
	}

	contact, err := store.GetContact(r.Context(), a.db, contactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to load contact", http.StatusInternalServerError)

		return
	}

	a.renderJSON(w, http.StatusOK, contact)
}

func (a *App) handleAddContact(w http.ResponseWriter, r *http.Request) {
	contact, ok := decodeContact(w, r)
	if !ok {
		return
	}

	contactID, err := store.CreateContact(r.Context(), a.db, &contact)
	if err != nil {
		slog.Error("create contact failed", "err", err)
		http.Error(w, "failed to create contact", http.StatusInternalServerError)

		return
	}

	contact.ID = contactID

	slog.Info("contact created", "contact_id", contactID)
	a.renderJSON(w, http.StatusCreated, contact)
}

func (a *App) handleEditContact(w http.ResponseWriter, r *http.Request) {
	contactID, ok := pathID(r, "contactID")
	if !ok {
		http.NotFound(w, r)

		return
	}

	contact, ok := decodeContact(w, r)
	if !ok {
		return
	}

	contact.ID = contactID

	err := store.UpdateContact(r.Context(), a.db, &contact)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to update contact", http.StatusInternalServerError)

		return
	}

	slog.Info("contact updated", "contact_id", contactID)
	a.renderJSON(w, http.StatusOK, contact)
}

func (a *App) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	contactID, ok := pathID(r, "contactID")
	if !ok {
		http.NotFound(w, r)

		return
	}

	err := store.DeleteContact(r.Context(), a.db, contactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)

			return
		}

		http.Error(w, "failed to delete contact", http.StatusInternalServerError)

		return
	}

	slog.Info("contact deleted", "contact_id", contactID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("contact deleted"))
}

func (a *App) handleGetAbout(w http.ResponseWriter, r *http.Request) {
	content, err := store.GetAbout(r.Context(), a.db)
	if err != nil {
		http.Error(w, "failed to load about", http.StatusInternalServerError)

		return
	}

	a.renderJSON(w, http.StatusOK, model.About{ID: 1, Content: content})
}

func (a *App) handleUpdateAbout(w http.ResponseWriter, r *http.Request) {
	var about model.About

	err := json.NewDecoder(r.Body).Decode(&about)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	err = store.UpdateAbout(r.Context(), a.db, about.Content)
	if err != nil {
		http.Error(w, "failed to update about", http.StatusInternalServerError)

		return
	}

	slog.Info("about updated")
	a.renderJSON(w, http.StatusOK, model.About{ID: 1, Content: about.Content})
}

func decodeContact(w http.ResponseWriter, r *http.Request) (model.Contact, bool) {
	var contact model.Contact

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&contact)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return model.Contact{}, false
	}

	if strings.TrimSpace(contact.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)

		return model.Contact{}, false
	}

	if contact.Type == "" {
		contact.Type = model.ContactOther
	}

	return contact, true
}
