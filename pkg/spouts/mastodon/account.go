// Package mastodon implements a spout over a Mastodon account's public
// statuses.
package mastodon

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattn/go-mastodon"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

const TypeAccount = "mastodon/account"

const defaultInstanceURL = "https://mastodon.social"

const statusPageSize = 40

type Account struct {
	logger *zerolog.Logger

	title   string
	htmlURL string
	items   []spouts.Item
}

func NewAccount(logger *zerolog.Logger) *Account {
	return &Account{logger: logger}
}

func AccountDescriptor() spouts.Descriptor {
	return spouts.Descriptor{
		ID:          TypeAccount,
		Name:        "Mastodon: user timeline",
		Description: "Fetch posts of a mastodon account.",
		Params: []params.Param{
			{
				Name:       "instance",
				Title:      "Instance URL",
				Type:       params.TypeURL,
				Default:    defaultInstanceURL,
				Validation: []params.Validator{params.ValidatorNonEmpty},
			},
			{
				Name:       "account",
				Title:      "Account",
				Type:       params.TypeText,
				Required:   true,
				Validation: []params.Validator{params.ValidatorNonEmpty},
			},
		},
	}
}

func (s *Account) Load(ctx context.Context, p params.Values) error {
	instanceURL := strings.TrimRight(p.Get("instance"), "/")
	acct := p.Get("account")

	client := mastodon.NewClient(&mastodon.Config{
		Server: instanceURL,
	})

	account, err := client.AccountLookup(ctx, acct)
	if err != nil {
		return &spouts.FetchError{Endpoint: instanceURL, Err: fmt.Errorf("account lookup: %w", err)}
	}

	statuses, err := client.GetAccountStatuses(ctx, account.ID, &mastodon.Pagination{
		Limit: statusPageSize,
	})
	if err != nil {
		return &spouts.FetchError{Endpoint: instanceURL, Err: fmt.Errorf("fetch account statuses: %w", err)}
	}

	s.logger.Debug().
		Str("account", acct).
		Int("count", len(statuses)).
		Msg("Fetched account statuses")

	items := make([]spouts.Item, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, statusItem(status))
	}
	s.items = items

	// Local accounts report a bare username; qualify it with the
	// instance host so sources on different instances stay tellable
	// apart.
	s.title = fmt.Sprintf("@%s", account.Acct)
	if !strings.Contains(account.Acct, "@") {
		if host, err := lib.StripURLHost(instanceURL); err == nil {
			s.title = fmt.Sprintf("@%s@%s", account.Acct, host)
		}
	}
	s.htmlURL = account.URL
	if s.htmlURL == "" {
		s.htmlURL = fmt.Sprintf("%s/@%s", instanceURL, acct)
	}

	return nil
}

func statusItem(status *mastodon.Status) spouts.Item {
	content := extractTextFromHTML(status.Content)
	if content == "" && status.Reblog != nil {
		content = fmt.Sprintf("Reblogged @%s: %s",
			status.Reblog.Account.Acct,
			extractTextFromHTML(status.Reblog.Content))
	}

	link := status.URL
	if link == "" && status.Reblog != nil {
		link = status.Reblog.URL
	}

	var thumbnail string
	if len(status.MediaAttachments) > 0 {
		thumbnail = status.MediaAttachments[0].URL
	}

	return spouts.Item{
		ID:        string(status.ID),
		Title:     oneLineTitle(content, 80),
		Content:   content,
		Link:      link,
		Thumbnail: thumbnail,
		Author:    "@" + status.Account.Acct,
		Published: status.CreatedAt,
	}
}

func extractTextFromHTML(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

func oneLineTitle(text string, maxLen int) string {
	t := strings.Join(strings.Fields(text), " ")
	runes := []rune(t)
	if len(runes) > maxLen {
		return string(runes[:maxLen-1]) + "…"
	}
	return t
}

func (s *Account) Title() string {
	return s.title
}

func (s *Account) HTMLURL() string {
	return s.htmlURL
}

func (s *Account) Items() []spouts.Item {
	if s.items == nil {
		return []spouts.Item{}
	}
	return s.items
}

func (s *Account) Destroy() {
	s.items = []spouts.Item{}
}
