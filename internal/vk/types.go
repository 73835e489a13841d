// Package vk fetches wall posts from the VK API and normalizes them into
// news items.
package vk

import "fmt"

type wallResponse struct {
	Error    *APIError  `json:"error"`
	Response *wallItems `json:"response"`
}

type wallItems struct {
	Items []Post `json:"items"`
}

// APIError is the error object the wall API returns in place of items.
type APIError struct {
	Message string `json:"error_msg"`
	Code    int    `json:"error_code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Post is one raw wall post.
type Post struct {
	Text        string       `json:"text"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments"`
	ID          int64        `json:"id"`
	Date        int64        `json:"date"`
}

// Attachment is one media-bearing sub-object of a post, tagged by kind.
type Attachment struct {
	Photo *Photo `json:"photo"`
	Video *Video `json:"video"`
	Doc   *Doc   `json:"doc"`
	Audio *Audio `json:"audio"`
	Link  *Link  `json:"link"`
	Type  string `json:"type"`
}

// Photo carries the size variants of a photo attachment.
type Photo struct {
	Sizes []PhotoSize `json:"sizes"`
}

// PhotoSize is one size variant of a photo.
type PhotoSize struct {
	URL   string `json:"url"`
	Width int    `json:"width"`
}

// Video carries the playable URLs of a video attachment.
type Video struct {
	Player string      `json:"player"`
	Files  *VideoFiles `json:"files"`
}

// VideoFiles lists direct file variants in descending quality.
type VideoFiles struct {
	MP4720 string `json:"mp4_720"`
	MP4480 string `json:"mp4_480"`
	MP4360 string `json:"mp4_360"`
	MP4240 string `json:"mp4_240"`
}

// Doc is a document attachment with its declared content type.
type Doc struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Audio is an audio attachment.
type Audio struct {
	URL string `json:"url"`
}

// Link is a link attachment, possibly carrying an embedded photo.
type Link struct {
	Photo *Photo `json:"photo"`
}
