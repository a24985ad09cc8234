package rss

import (
	"context"

	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
)

var popularFeedPresets = []spouts.Preset{
	{Spout: TypeFeed, Title: "Hacker News RSS", Params: map[string]string{"url": "https://news.ycombinator.com/rss"}},
	{Spout: TypeFeed, Title: "The GitHub Blog", Params: map[string]string{"url": "https://github.blog/feed/"}},
	{Spout: TypeFeed, Title: "Go Blog", Params: map[string]string{"url": "https://go.dev/blog/feed.atom"}},
	{Spout: TypeFeed, Title: "LWN.net", Params: map[string]string{"url": "https://lwn.net/headlines/rss"}},
	{Spout: TypeFeed, Title: "Ars Technica", Params: map[string]string{"url": "https://feeds.arstechnica.com/arstechnica/index"}},
}

// PresetFetcher suggests a fixed set of well-known feeds for quick add.
type PresetFetcher struct{}

func (f *PresetFetcher) Search(_ context.Context, query string) ([]spouts.Preset, error) {
	if query == "" {
		return popularFeedPresets, nil
	}

	var matches []spouts.Preset
	for _, preset := range popularFeedPresets {
		if lib.FuzzyContains(preset.Title, query) {
			matches = append(matches, preset)
		}
	}
	return matches, nil
}
