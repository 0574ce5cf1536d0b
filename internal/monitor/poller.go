// File: internal/monitor/poller.go
package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/pkg/utils"
)

// FeedFetcher returns the current items of a syndication feed, newest first
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]models.FeedItem, error)
}

// GoFeedFetcher downloads and parses an RSS or Atom feed
type GoFeedFetcher struct {
	url    string
	parser *gofeed.Parser
	logger *logrus.Logger

	mu           sync.RWMutex
	lastPollTime time.Time
	pollCount    uint64
	errorCount   uint64
}

// NewGoFeedFetcher creates a fetcher for url using client for the download
func NewGoFeedFetcher(url string, client *http.Client) *GoFeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "donation-relay/1.0"

	return &GoFeedFetcher{
		url:    url,
		parser: parser,
		logger: utils.GetLogger(),
	}
}

// Fetch downloads the feed and maps its entries to FeedItems in feed order
func (gf *GoFeedFetcher) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	gf.mu.Lock()
	gf.pollCount++
	gf.lastPollTime = time.Now()
	gf.mu.Unlock()

	feed, err := gf.parser.ParseURLWithContext(gf.url, ctx)
	if err != nil {
		gf.recordError()
		return nil, utils.WrapAppError(utils.ErrCodeFeed, "Failed to fetch feed", err)
	}

	items := make([]models.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		items = append(items, toFeedItem(entry))
	}
	return items, nil
}

func toFeedItem(entry *gofeed.Item) models.FeedItem {
	item := models.FeedItem{
		ID:           entry.GUID,
		Title:        entry.Title,
		Link:         entry.Link,
		ThumbnailURL: thumbnailOf(entry),
	}
	if item.ID == "" {
		item.ID = entry.Link
	}
	switch {
	case entry.PublishedParsed != nil:
		item.PublishedAt = *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		item.PublishedAt = *entry.UpdatedParsed
	}
	return item
}

// thumbnailOf prefers the media:group thumbnail that video feeds carry
func thumbnailOf(entry *gofeed.Item) string {
	if media, ok := entry.Extensions["media"]; ok {
		for _, group := range media["group"] {
			for _, thumb := range group.Children["thumbnail"] {
				if url := thumb.Attrs["url"]; url != "" {
					return url
				}
			}
		}
		for _, thumb := range media["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
	}
	if entry.Image != nil {
		return entry.Image.URL
	}
	return ""
}

// GetStats returns fetcher statistics
func (gf *GoFeedFetcher) GetStats() map[string]interface{} {
	gf.mu.RLock()
	defer gf.mu.RUnlock()

	return map[string]interface{}{
		"url":            gf.url,
		"poll_count":     gf.pollCount,
		"error_count":    gf.errorCount,
		"last_poll_time": gf.lastPollTime,
	}
}

func (gf *GoFeedFetcher) recordError() {
	gf.mu.Lock()
	gf.errorCount++
	gf.mu.Unlock()
}
