// Package github implements a spout over a repository's releases.
package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v72/github"
	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypeReleases = "github/releases"

const releaseLimit = 30

type Releases struct {
	logger *zerolog.Logger

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewReleases(logger *zerolog.Logger) *Releases {
	return &Releases{logger: logger}
}

func ReleasesDescriptor() spouts.Descriptor {
	return spouts.Descriptor{
		ID:          TypeReleases,
		Name:        "GitHub: releases",
		Description: "Fetch releases of a GitHub repository.",
		Params: []params.Param{
			{
				Name:       "owner",
				Title:      "Owner",
				Type:       params.TypeText,
				Required:   true,
				Validation: []params.Validator{params.ValidatorNonEmpty},
			},
			{
				Name:       "repo",
				Title:      "Repository",
				Type:       params.TypeText,
				Required:   true,
				Validation: []params.Validator{params.ValidatorNonEmpty},
			},
			{
				Name:  "token",
				Title: "API Token (optional)",
				Type:  params.TypePassword,
			},
		},
	}
}

func (s *Releases) Load(ctx context.Context, p params.Values) error {
	owner := p.Get("owner")
	repo := p.Get("repo")

	// Unauthenticated requests work for public repositories but hit a
	// much lower rate limit.
	client := github.NewClient(nil)
	if token := p.Get("token"); token != "" {
		client = client.WithAuthToken(token)
	}

	releases, resp, err := client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{
		PerPage: releaseLimit,
	})
	if err != nil {
		fetchErr := &spouts.FetchError{Endpoint: fmt.Sprintf("%s/%s", owner, repo), Err: err}
		if resp != nil {
			fetchErr.StatusCode = resp.StatusCode
		}
		return fetchErr
	}

	s.logger.Debug().
		Str("owner", owner).
		Str("repo", repo).
		Int("count", len(releases)).
		Msg("Fetched repository releases")

	items := make([]spouts.Item, 0, len(releases))
	for _, release := range releases {
		items = append(items, releaseItem(release))
	}
	s.items = items

	s.title = fmt.Sprintf("%s/%s releases", owner, repo)
	s.htmlURL = fmt.Sprintf("https://github.com/%s/%s/releases", owner, repo)

	return nil
}

func releaseItem(release *github.RepositoryRelease) spouts.Item {
	title := release.GetName()
	if title == "" {
		title = release.GetTagName()
	}

	return spouts.Item{
		ID:        fmt.Sprintf("%d", release.GetID()),
		Title:     title,
		Content:   release.GetBody(),
		Link:      release.GetHTMLURL(),
		Author:    release.GetAuthor().GetLogin(),
		Published: release.GetPublishedAt().Time,
	}
}

func (s *Releases) Title() string {
	return s.title
}

func (s *Releases) HTMLURL() string {
	return s.htmlURL
}

func (s *Releases) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *Releases) Destroy() {
	s.items = []spouts.Item{}
}
