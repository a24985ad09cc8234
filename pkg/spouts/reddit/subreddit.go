// Package reddit implements a spout over a subreddit listing.
package reddit

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypeSubreddit = "reddit/subreddit"

const postLimit = 50

type Subreddit struct {
	logger *zerolog.Logger

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewSubreddit(logger *zerolog.Logger) *Subreddit {
	return &Subreddit{logger: logger}
}

func SubredditDescriptor() spouts.Descriptor {
	return spouts.Descriptor{
		ID:          TypeSubreddit,
		Name:        "Reddit",
		Description: "Fetch posts from a subreddit.",
		Params: []params.Param{
			{
				Name:       "subreddit",
				Title:      "Subreddit",
				Type:       params.TypeText,
				Required:   true,
				Validation: []params.Validator{params.ValidatorNonEmpty},
			},
			{
				Name:    "sort",
				Title:   "Sort order",
				Type:    params.TypeSelect,
				Default: "hot",
				Values: map[string]string{
					"hot": "Hot",
					"new": "New",
					"top": "Top",
				},
			},
		},
	}
}

func (s *Subreddit) Load(ctx context.Context, p params.Values) error {
	subreddit := p.Get("subreddit")
	sort := p.Get("sort")

	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return &spouts.FetchError{Endpoint: "reddit", Err: fmt.Errorf("init client: %w", err)}
	}

	opts := &reddit.ListOptions{Limit: postLimit}

	var posts []*reddit.Post
	switch sort {
	case "new":
		posts, _, err = client.Subreddit.NewPosts(ctx, subreddit, opts)
	case "top":
		posts, _, err = client.Subreddit.TopPosts(ctx, subreddit, &reddit.ListPostOptions{
			ListOptions: *opts,
			Time:        "week",
		})
	default:
		posts, _, err = client.Subreddit.HotPosts(ctx, subreddit, opts)
	}
	if err != nil {
		return &spouts.FetchError{Endpoint: "r/" + subreddit, Err: err}
	}

	s.logger.Debug().
		Str("subreddit", subreddit).
		Int("count", len(posts)).
		Msg("Fetched subreddit posts")

	items := make([]spouts.Item, 0, len(posts))
	for _, post := range posts {
		items = append(items, postItem(post))
	}
	s.items = items

	s.title = fmt.Sprintf("r/%s", subreddit)
	s.htmlURL = fmt.Sprintf("https://www.reddit.com/r/%s/%s", subreddit, sort)

	return nil
}

func postItem(post *reddit.Post) spouts.Item {
	content := post.Body
	if content == "" {
		content = post.URL
	}

	return spouts.Item{
		ID:        post.FullID,
		Title:     html.UnescapeString(post.Title),
		Content:   content,
		Link:      "https://www.reddit.com" + post.Permalink,
		Author:    "u/" + post.Author,
		Published: post.Created.Time,
	}
}

func (s *Subreddit) Title() string {
	return s.title
}

func (s *Subreddit) HTMLURL() string {
	return s.htmlURL
}

func (s *Subreddit) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *Subreddit) Destroy() {
	s.items = []spouts.Item{}
}
