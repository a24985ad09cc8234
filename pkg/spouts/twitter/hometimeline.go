package twitter

import (
	"context"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypeHomeTimeline = "twitter/hometimeline"

var credentialParams = []params.Param{
	{
		Name:       "consumer_key",
		Title:      "Consumer Key",
		Type:       params.TypeText,
		Required:   true,
		Validation: []params.Validator{params.ValidatorNonEmpty},
	},
	{
		Name:       "consumer_secret",
		Title:      "Consumer Secret",
		Type:       params.TypePassword,
		Required:   true,
		Validation: []params.Validator{params.ValidatorNonEmpty},
	},
}

// HomeTimeline fetches the authenticated account's own timeline.
type HomeTimeline struct {
	factory ClientCreator

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewHomeTimeline(factory ClientCreator) *HomeTimeline {
	return &HomeTimeline{factory: factory}
}

func HomeTimelineDescriptor() spouts.Descriptor {
	schema := append([]params.Param{}, credentialParams...)
	schema = append(schema,
		params.Param{
			Name:       "access_key",
			Title:      "Access Key",
			Type:       params.TypePassword,
			Required:   true,
			Validation: []params.Validator{params.ValidatorNonEmpty},
		},
		params.Param{
			Name:       "access_secret",
			Title:      "Access Secret",
			Type:       params.TypePassword,
			Required:   true,
			Validation: []params.Validator{params.ValidatorNonEmpty},
		},
	)

	return spouts.Descriptor{
		ID:          TypeHomeTimeline,
		Name:        "Twitter: your timeline",
		Description: "Fetch your twitter timeline.",
		Params:      schema,
	}
}

func (s *HomeTimeline) Load(ctx context.Context, p params.Values) error {
	client := s.factory.Create(
		p.Get("consumer_key"),
		p.Get("consumer_secret"),
		p.Get("access_key"),
		p.Get("access_secret"),
	)

	items, err := collectTimeline(client.FetchTimeline(ctx, "statuses/home_timeline", nil))
	if err != nil {
		return err
	}

	s.items = items
	s.htmlURL = "https://twitter.com/"
	s.title = "Home timeline"

	return nil
}

func (s *HomeTimeline) Title() string {
	return s.title
}

func (s *HomeTimeline) HTMLURL() string {
	return s.htmlURL
}

func (s *HomeTimeline) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *HomeTimeline) Destroy() {
	s.items = []spouts.Item{}
}
