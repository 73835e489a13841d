package vk

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"sportnews/internal/media"
	"sportnews/internal/model"
)

const maxTitleRunes = 100

// Normalizer turns one raw wall post into zero or one news items.
type Normalizer struct {
	downloader *media.Downloader
	loc        *time.Location
}

// NewNormalizer is part of the vk package API.
func NewNormalizer(downloader *media.Downloader, loc *time.Location) *Normalizer {
	return &Normalizer{downloader: downloader, loc: loc}
}

// Normalize extracts a news item from a post. Posts without usable text
// produce nothing. Attachment downloads run sequentially in attachment
// order; a failed download drops that one attachment, not the post.
func (n *Normalizer) Normalize(ctx context.Context, post Post) (model.News, bool) {
	text := post.Text
	if text == "" {
		text = post.Description
	}

	if text == "" {
		return model.News{}, false
	}

	item := model.News{
		Title:     truncateTitle(text),
		Content:   text,
		Source:    model.SourceFeed,
		SourceID:  strconv.FormatInt(post.ID, 10),
		CreatedAt: n.postTime(post),
	}

	for _, att := range post.Attachments {
		srcURL, contentType, ok := ResolveAttachment(att)
		if !ok {
			continue
		}

		name, err := n.downloader.Download(ctx, srcURL, contentType)
		if err != nil {
			slog.Error("attachment download failed", "post_id", post.ID, "err", err)

			continue
		}

		item.Media = append(item.Media, model.Media{
			FileName: name,
			FileType: contentType,
			FilePath: "/files/" + name,
		})
	}

	return item, true
}

func (n *Normalizer) postTime(post Post) time.Time {
	if post.Date > 0 {
		return time.Unix(post.Date, 0).In(n.loc)
	}

	return time.Now().In(n.loc)
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}

	return string(runes[:maxTitleRunes])
}
