package vk

// ResolveAttachment decides whether an attachment carries retrievable media
// and returns its source URL and content type. Attachments of unknown kinds
// resolve to no media rather than an error.
func ResolveAttachment(att Attachment) (string, string, bool) {
	switch att.Type {
	case "photo":
		return resolvePhoto(att.Photo)
	case "video":
		return resolveVideo(att.Video)
	case "doc":
		return resolveDoc(att.Doc)
	case "audio":
		return resolveAudio(att.Audio)
	case "link":
		return resolveLink(att.Link)
	default:
		return "", "", false
	}
}

func resolvePhoto(photo *Photo) (string, string, bool) {
	if photo == nil {
		return "", "", false
	}

	url := widestSizeURL(photo.Sizes)
	if url == "" {
		return "", "", false
	}

	return url, "image/jpeg", true
}

// widestSizeURL picks the size variant with the maximum width.
func widestSizeURL(sizes []PhotoSize) string {
	var (
		maxWidth int
		url      string
	)

	for _, size := range sizes {
		if size.Width > maxWidth {
			maxWidth = size.Width
			url = size.URL
		}
	}

	return url
}

// resolveVideo prefers the embedded player URL, then direct file variants
// in descending quality.
func resolveVideo(video *Video) (string, string, bool) {
	if video == nil {
		return "", "", false
	}

	if video.Player != "" {
		return video.Player, "video/mp4", true
	}

	if video.Files == nil {
		return "", "", false
	}

	variants := []string{
		video.Files.MP4720,
		video.Files.MP4480,
		video.Files.MP4360,
		video.Files.MP4240,
	}
	for _, url := range variants {
		if url != "" {
			return url, "video/mp4", true
		}
	}

	return "", "", false
}

func resolveDoc(doc *Doc) (string, string, bool) {
	if doc == nil || doc.URL == "" {
		return "", "", false
	}

	return doc.URL, doc.Type, true
}

func resolveAudio(audio *Audio) (string, string, bool) {
	if audio == nil || audio.URL == "" {
		return "", "", false
	}

	return audio.URL, "audio/mpeg", true
}

func resolveLink(link *Link) (string, string, bool) {
	if link == nil || link.Photo == nil {
		return "", "", false
	}

	return resolvePhoto(link.Photo)
}
