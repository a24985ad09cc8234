package twitter

import (
	"context"
	"fmt"
	"net/url"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypeListTimeline = "twitter/listtimeline"

// ListTimeline fetches the timeline of a public Twitter list. The user
// access token pair is optional; without it the client falls back to
// application-only auth.
type ListTimeline struct {
	factory ClientCreator

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewListTimeline(factory ClientCreator) *ListTimeline {
	return &ListTimeline{factory: factory}
}

func ListTimelineDescriptor() spouts.Descriptor {
	schema := append([]params.Param{}, credentialParams...)
	schema = append(schema,
		params.Param{
			Name:  "access_token",
			Title: "Access Token (optional)",
			Type:  params.TypeText,
		},
		params.Param{
			Name:  "access_token_secret",
			Title: "Access Token Secret (optional)",
			Type:  params.TypePassword,
		},
		params.Param{
			Name:       "slug",
			Title:      "List Slug",
			Type:       params.TypeText,
			Required:   true,
			Validation: []params.Validator{params.ValidatorNonEmpty},
		},
		params.Param{
			Name:       "owner_screen_name",
			Title:      "Username",
			Type:       params.TypeText,
			Required:   true,
			Validation: []params.Validator{params.ValidatorNonEmpty},
		},
	)

	return spouts.Descriptor{
		ID:          TypeListTimeline,
		Name:        "Twitter: list timeline",
		Description: "Fetch the timeline of a given list.",
		Params:      schema,
	}
}

func (s *ListTimeline) Load(ctx context.Context, p params.Values) error {
	client := s.factory.Create(
		p.Get("consumer_key"),
		p.Get("consumer_secret"),
		p.Get("access_token"),
		p.Get("access_token_secret"),
	)

	owner := p.Get("owner_screen_name")
	slug := p.Get("slug")

	items, err := collectTimeline(client.FetchTimeline(ctx, "lists/statuses", url.Values{
		"slug":              {slug},
		"owner_screen_name": {owner},
	}))
	if err != nil {
		return err
	}

	s.items = items
	s.htmlURL = "https://twitter.com/" + url.QueryEscape(owner)
	s.title = fmt.Sprintf("@%s/%s", owner, slug)

	return nil
}

func (s *ListTimeline) Title() string {
	return s.title
}

func (s *ListTimeline) HTMLURL() string {
	return s.htmlURL
}

func (s *ListTimeline) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *ListTimeline) Destroy() {
	s.items = []spouts.Item{}
}
