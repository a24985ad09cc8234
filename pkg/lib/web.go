package lib

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const defaultClientTimeout = 10 * time.Second

var BuildVersion = "dev"

var UserAgentString = "selfoss/" + BuildVersion + " +https://github.com/MiteyIronPaw/selfoss"

var DefaultHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 10,
	},
	Timeout: defaultClientTimeout,
}

func StripURLHost(url string) (string, error) {
	parsedURL, err := neturl.Parse(url)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("url has no host")
	}

	return strings.TrimPrefix(parsedURL.Host, "www."), nil
}

// FetchFaviconURL finds a favicon for the given website.
// Best effort: returns an empty string when none is found.
func FetchFaviconURL(ctx context.Context, logger *zerolog.Logger, websiteURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, websiteURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", UserAgentString)

	resp, err := DefaultHTTPClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if faviconURL := findFaviconInHTML(logger, resp); faviconURL != "" {
		return faviconURL
	}

	parsedURL, err := neturl.Parse(websiteURL)
	if err != nil {
		return ""
	}

	for _, path := range []string{"/favicon.ico", "/favicon.png", "/apple-touch-icon.png"} {
		faviconURL := parsedURL.Scheme + "://" + parsedURL.Host + path
		if faviconExists(ctx, faviconURL) {
			return faviconURL
		}
	}

	return ""
}

func faviconExists(ctx context.Context, faviconURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, faviconURL, nil)
	if err != nil {
		return false
	}

	resp, err := DefaultHTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func findFaviconInHTML(logger *zerolog.Logger, resp *http.Response) string {
	websiteURL := resp.Request.URL.String()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logger.Warn().Str("url", websiteURL).Msg("failed to parse HTML for favicon")
		return ""
	}

	parsedURL, err := neturl.Parse(websiteURL)
	if err != nil {
		return ""
	}

	selectors := []string{
		"link[rel='icon']",
		"link[rel='shortcut icon']",
		"link[rel='apple-touch-icon']",
	}

	var found string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if found != "" {
				return
			}
			href, exists := s.Attr("href")
			if !exists || href == "" {
				return
			}
			// Resolve relative URLs against the page host
			if !strings.HasPrefix(href, "http") {
				if !strings.HasPrefix(href, "/") {
					href = "/" + href
				}
				href = parsedURL.Scheme + "://" + parsedURL.Host + href
			}
			found = href
		})
		if found != "" {
			break
		}
	}

	return found
}
