// Package model defines the domain types shared across the application.
package model

import "time"

// NewsSource tags the provenance of a news item.
type NewsSource string

// Supported news sources.
const (
	SourceManual NewsSource = "MANUAL"
	SourceFeed   NewsSource = "FEED"
)

// Media describes one attachment of a news item. FilePath is the relative
// serving path under /files/.
type Media struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FilePath string `json:"filePath"`
}

// News is one article. Media is ordered; the first entry is the cover.
type News struct {
	CreatedAt time.Time  `json:"createdAt"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Source    NewsSource `json:"source"`
	SourceID  string     `json:"sourceId,omitempty"`
	Media     []Media    `json:"media,omitempty"`
	ID        int64      `json:"id"`
}

// ContactType categorizes a contact entry.
type ContactType string

// Supported contact types.
const (
	ContactPhone   ContactType = "phone"
	ContactEmail   ContactType = "email"
	ContactAddress ContactType = "address"
	ContactSocial  ContactType = "social"
	ContactOther   ContactType = "other"
)

// Contact is one contact entry on the site.
type Contact struct {
	Title   string      `json:"title"`
	Content string      `json:"content"`
	Type    ContactType `json:"type"`
	ID      int64       `json:"id"`
}

// About is the singleton free-text "about" record.
type About struct {
	Content string `json:"content"`
	ID      int64  `json:"id"`
}
