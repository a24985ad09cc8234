// Package rss implements the web feed spout, the default target of the
// quick-add flow.
package rss

import (
	"context"
	"html"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypeFeed = "rss/feed"

type Feed struct {
	logger *zerolog.Logger

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewFeed(logger *zerolog.Logger) *Feed {
	return &Feed{logger: logger}
}

func FeedDescriptor() spouts.Descriptor {
	return spouts.Descriptor{
		ID:          TypeFeed,
		Name:        "RSS Feed",
		Description: "An default RSS Feed as source",
		Params: []params.Param{
			{
				Name:       "url",
				Title:      "URL",
				Type:       params.TypeURL,
				Required:   true,
				Validation: []params.Validator{params.ValidatorNonEmpty},
			},
		},
	}
}

func (s *Feed) Load(ctx context.Context, p params.Values) error {
	feedURL := p.Get("url")

	parser := gofeed.NewParser()
	parser.UserAgent = lib.UserAgentString

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return &spouts.FetchError{Endpoint: feedURL, Err: err}
	}

	s.title = feed.Title
	s.htmlURL = feed.Link

	// Item thumbnails fall back to the site favicon, matching how the
	// reader displays a source icon next to iconless entries.
	var favicon string
	if feed.Link != "" {
		favicon = s.faviconFor(ctx, feed.Link)
	}

	items := make([]spouts.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, feedItem(entry, favicon))
	}
	s.items = items

	return nil
}

// Favicons rarely change, and spout instances only live for one fetch,
// so the cache spans instances.
var faviconCache = func() *lib.Cache {
	logger := zerolog.Nop()
	return lib.NewCache(6*time.Hour, &logger)
}()

func (s *Feed) faviconFor(ctx context.Context, siteURL string) string {
	key := lib.HashParams("favicon", siteURL)
	if cached, ok := faviconCache.Get(key); ok {
		return cached.(string)
	}

	favicon := lib.FetchFaviconURL(ctx, s.logger, siteURL)
	faviconCache.Set(key, favicon)
	return favicon
}

func feedItem(entry *gofeed.Item, favicon string) spouts.Item {
	id := entry.GUID
	if id == "" {
		id = entry.Link
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}

	var published time.Time
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	thumbnail := favicon
	if entry.Image != nil && entry.Image.URL != "" {
		thumbnail = entry.Image.URL
	}

	var author string
	if len(entry.Authors) > 0 {
		author = entry.Authors[0].Name
	}

	return spouts.Item{
		ID:        id,
		Title:     html.UnescapeString(entry.Title),
		Content:   content,
		Link:      entry.Link,
		Thumbnail: thumbnail,
		Author:    author,
		Published: published,
	}
}

func (s *Feed) Title() string {
	return s.title
}

func (s *Feed) HTMLURL() string {
	return s.htmlURL
}

func (s *Feed) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *Feed) Destroy() {
	s.items = []spouts.Item{}
}
