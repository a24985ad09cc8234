// Package twitter implements the Twitter v1.1 timeline spouts and their
// shared API client.
package twitter

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/MiteyIronPaw/selfoss/pkg/lib"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
)

const (
	defaultAPIBaseURL = "https://api.twitter.com/1.1"
	defaultTokenURL   = "https://api.twitter.com/oauth2/token"

	// Twitter caps timeline pages at 200 entries.
	pageSize = 200

	defaultMaxItems = 400
)

// TimelineClient retrieves raw timeline entries from one authenticated
// Twitter API session.
type TimelineClient interface {
	FetchTimeline(ctx context.Context, endpoint string, extra url.Values) iter.Seq2[*Tweet, error]
}

// ClientCreator builds a TimelineClient from credential parameters.
// Spouts depend on this interface so tests can substitute a fake without
// touching the spout under test.
type ClientCreator interface {
	Create(consumerKey, consumerSecret, accessKey, accessSecret string) TimelineClient
}

// ClientFactory is the production ClientCreator. Construction of clients is
// pure: no network I/O happens until the first FetchTimeline page.
type ClientFactory struct {
	// BaseURL and TokenURL default to the public Twitter API and exist
	// for tests pointing at a local server.
	BaseURL  string
	TokenURL string
	// MaxItems caps how many entries one FetchTimeline call yields
	// across all pages.
	MaxItems int

	logger *zerolog.Logger
}

func NewClientFactory(logger *zerolog.Logger) *ClientFactory {
	return &ClientFactory{
		BaseURL:  defaultAPIBaseURL,
		TokenURL: defaultTokenURL,
		MaxItems: defaultMaxItems,
		logger:   logger,
	}
}

func (f *ClientFactory) Create(consumerKey, consumerSecret, accessKey, accessSecret string) TimelineClient {
	var httpClient *http.Client

	if accessKey != "" && accessSecret != "" {
		config := oauth1.NewConfig(consumerKey, consumerSecret)
		token := oauth1.NewToken(accessKey, accessSecret)
		httpClient = config.Client(oauth1.NoContext, token)
	} else {
		// No user token: application-only auth. The bearer token is
		// requested lazily on the first API call.
		config := &clientcredentials.Config{
			ClientID:     consumerKey,
			ClientSecret: consumerSecret,
			TokenURL:     f.TokenURL,
		}
		httpClient = config.Client(context.Background())
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(f.BaseURL, "/"),
		maxItems:   f.MaxItems,
		limiter:    rate.NewLimiter(rate.Limit(1), 3),
		logger:     f.logger,
	}
}

// Client performs authenticated, paginated retrieval against the Twitter
// v1.1 REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxItems   int
	limiter    *rate.Limiter
	logger     *zerolog.Logger
}

// FetchTimeline returns a lazy, single-use sequence of raw timeline
// entries. Pages are requested transparently via max_id until the API has
// no further entries or the client's item cap is reached. Any page failure
// ends the sequence with a *spouts.FetchError.
func (c *Client) FetchTimeline(ctx context.Context, endpoint string, extra url.Values) iter.Seq2[*Tweet, error] {
	return func(yield func(*Tweet, error) bool) {
		var maxID uint64
		yielded := 0

		for {
			tweets, err := c.fetchPage(ctx, endpoint, extra, maxID)
			if err != nil {
				yield(nil, err)
				return
			}

			if len(tweets) == 0 {
				return
			}

			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("count", len(tweets)).
				Uint64("max_id", maxID).
				Msg("Fetched timeline page")

			for _, tweet := range tweets {
				if !yield(tweet, nil) {
					return
				}
				yielded++
				if yielded >= c.maxItems {
					return
				}
			}

			// A short page means the timeline is exhausted.
			if len(tweets) < pageSize {
				return
			}

			last := tweets[len(tweets)-1]
			maxID = last.ID - 1
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, extra url.Values, maxID uint64) ([]*Tweet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &spouts.FetchError{Endpoint: endpoint, Err: err}
	}

	query := url.Values{}
	for key, values := range extra {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("count", fmt.Sprintf("%d", pageSize))
	query.Set("tweet_mode", "extended")
	if maxID > 0 {
		query.Set("max_id", fmt.Sprintf("%d", maxID))
	}

	requestURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &spouts.FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", lib.UserAgentString)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &spouts.FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		truncated, _ := lib.LimitStringLength(string(body), 256)
		return nil, &spouts.FetchError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncated),
		}
	}

	tweets, err := decodeTweets(resp.Body)
	if err != nil {
		return nil, &spouts.FetchError{Endpoint: endpoint, Err: err}
	}

	return tweets, nil
}

// collectTimeline drains a timeline sequence into normalized items.
func collectTimeline(seq iter.Seq2[*Tweet, error]) ([]spouts.Item, error) {
	items := []spouts.Item{}
	for tweet, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, tweet.Item())
	}
	return items, nil
}
