package twitter

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
)

// Tweet is one raw v1.1 timeline entry, limited to the fields the spouts
// consume.
type Tweet struct {
	ID        uint64 `json:"id"`
	IDStr     string `json:"id_str"`
	CreatedAt string `json:"created_at"`
	// FullText is populated in extended tweet mode, Text otherwise.
	FullText string    `json:"full_text"`
	Text     string    `json:"text"`
	User     TweetUser `json:"user"`
	Entities *Entities `json:"extended_entities"`
	Retweet  *Tweet    `json:"retweeted_status"`
}

type TweetUser struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

type Entities struct {
	Media []Media `json:"media"`
}

type Media struct {
	MediaURLHTTPS string `json:"media_url_https"`
}

func decodeTweets(r io.Reader) ([]*Tweet, error) {
	var tweets []*Tweet
	if err := json.NewDecoder(r).Decode(&tweets); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return tweets, nil
}

func (t *Tweet) text() string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

// Item normalizes the tweet. Retweets carry the original text prefixed
// with the retweeting convention so nothing is lost to v1.1 truncation.
func (t *Tweet) Item() spouts.Item {
	content := t.text()
	if t.Retweet != nil {
		content = fmt.Sprintf("RT @%s: %s", t.Retweet.User.ScreenName, t.Retweet.text())
	}

	published, err := time.Parse(time.RubyDate, t.CreatedAt)
	if err != nil {
		published = time.Time{}
	}

	var thumbnail string
	if t.Entities != nil && len(t.Entities.Media) > 0 {
		thumbnail = t.Entities.Media[0].MediaURLHTTPS
	}

	return spouts.Item{
		ID:        t.IDStr,
		Title:     oneLineTitle(content, 80),
		Content:   content,
		Link:      fmt.Sprintf("https://twitter.com/%s/status/%s", t.User.ScreenName, t.IDStr),
		Thumbnail: thumbnail,
		Author:    "@" + t.User.ScreenName,
		Published: published,
	}
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func oneLineTitle(text string, maxLen int) string {
	t := whitespacePattern.ReplaceAllString(text, " ")
	t = strings.TrimSpace(t)
	if utf8.RuneCountInString(t) > maxLen {
		runes := []rune(t)
		return string(runes[:maxLen-1]) + "…"
	}
	return t
}
