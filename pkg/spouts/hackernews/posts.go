// Package hackernews implements a spout over the Hacker News story feeds.
package hackernews

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexferrari88/gohn/pkg/gohn"
	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypePosts = "hackernews/posts"

const storyLimit = 30

type Posts struct {
	logger *zerolog.Logger

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewPosts(logger *zerolog.Logger) *Posts {
	return &Posts{logger: logger}
}

func PostsDescriptor() spouts.Descriptor {
	return spouts.Descriptor{
		ID:          TypePosts,
		Name:        "Hacker News",
		Description: "Fetch stories from a Hacker News feed.",
		Params: []params.Param{
			{
				Name:    "feed",
				Title:   "Feed",
				Type:    params.TypeSelect,
				Default: "top",
				Values: map[string]string{
					"top":  "Top stories",
					"new":  "New stories",
					"best": "Best stories",
				},
			},
		},
	}
}

func (s *Posts) Load(ctx context.Context, p params.Values) error {
	feed := p.Get("feed")

	client, err := gohn.NewClient(nil)
	if err != nil {
		return &spouts.FetchError{Endpoint: "hackernews", Err: fmt.Errorf("init client: %w", err)}
	}

	var storyIDs []*int
	switch feed {
	case "new":
		storyIDs, err = client.Stories.GetNewIDs(ctx)
	case "best":
		storyIDs, err = client.Stories.GetBestIDs(ctx)
	default:
		storyIDs, err = client.Stories.GetTopIDs(ctx)
	}
	if err != nil {
		return &spouts.FetchError{Endpoint: feed, Err: fmt.Errorf("fetch story IDs: %w", err)}
	}

	if len(storyIDs) > storyLimit {
		storyIDs = storyIDs[:storyLimit]
	}

	// Stories are independent documents, fetch them concurrently.
	pool := pond.NewPool(10)
	var mu sync.Mutex
	stories := make(map[int]*gohn.Item, len(storyIDs))

	for _, id := range storyIDs {
		if id == nil {
			continue
		}
		pool.Submit(func() {
			story, err := client.Items.Get(ctx, *id)
			if err != nil {
				s.logger.Warn().Err(err).Int("story_id", *id).Msg("Failed to fetch story")
				return
			}
			if story == nil || story.ID == nil {
				return
			}
			mu.Lock()
			stories[*id] = story
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	// Preserve the feed's own ranking order.
	items := make([]spouts.Item, 0, len(stories))
	for _, id := range storyIDs {
		if id == nil {
			continue
		}
		story, ok := stories[*id]
		if !ok {
			continue
		}
		items = append(items, storyItem(story))
	}
	s.items = items

	s.title = fmt.Sprintf("%s stories on Hacker News", lib.Capitalize(feed))
	s.htmlURL = feedURL(feed)

	return nil
}

func feedURL(feed string) string {
	switch feed {
	case "new":
		return "https://news.ycombinator.com/newest"
	case "best":
		return "https://news.ycombinator.com/best"
	default:
		return "https://news.ycombinator.com"
	}
}

func storyItem(story *gohn.Item) spouts.Item {
	commentsURL := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", *story.ID)

	link := commentsURL
	if story.URL != nil && *story.URL != "" {
		link = *story.URL
	}

	var title string
	if story.Title != nil {
		title = *story.Title
	}

	content := commentsURL
	if story.Text != nil && *story.Text != "" {
		content = *story.Text
	}

	var author string
	if story.By != nil {
		author = *story.By
	}

	var published time.Time
	if story.Time != nil {
		published = time.Unix(int64(*story.Time), 0)
	}

	return spouts.Item{
		ID:        fmt.Sprintf("%d", *story.ID),
		Title:     title,
		Content:   content,
		Link:      link,
		Author:    author,
		Published: published,
	}
}

func (s *Posts) Title() string {
	return s.title
}

func (s *Posts) HTMLURL() string {
	return s.htmlURL
}

func (s *Posts) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *Posts) Destroy() {
	s.items = []spouts.Item{}
}

// PresetFetcher offers the three fixed feeds as quick-add suggestions.
type PresetFetcher struct{}

func (f *PresetFetcher) Search(_ context.Context, query string) ([]spouts.Preset, error) {
	presets := []spouts.Preset{
		{Spout: TypePosts, Title: "Hacker News: top stories", Params: map[string]string{"feed": "top"}},
		{Spout: TypePosts, Title: "Hacker News: new stories", Params: map[string]string{"feed": "new"}},
		{Spout: TypePosts, Title: "Hacker News: best stories", Params: map[string]string{"feed": "best"}},
	}

	if query == "" {
		return presets, nil
	}

	var matches []spouts.Preset
	for _, preset := range presets {
		if lib.FuzzyContains(preset.Title, query) {
			matches = append(matches, preset)
		}
	}
	return matches, nil
}
