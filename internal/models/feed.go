package models

import "time"

// FeedItem is a single entry of the watched video channel feed
type FeedItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}
