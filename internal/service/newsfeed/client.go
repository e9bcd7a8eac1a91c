package newsfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"MorningBrief/internal/domain/models"
	xhttp "MorningBrief/pkg/http"

	"github.com/mmcdole/gofeed"
)

const (
	DefaultCryptoCompareURL = "https://min-api.cryptocompare.com/data/v2/news/?lang=EN"

	summaryLimit = 280
)

var ErrNoFeeds = errors.New("no feed produced items")

var tagPattern = regexp.MustCompile(`<[^>]*>`)

type cryptoCompareResponse struct {
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Body        string `json:"body"`
		PublishedOn int64  `json:"published_on"`
		Source      string `json:"source"`
		SourceInfo  struct {
			Name string `json:"name"`
		} `json:"source_info"`
	} `json:"Data"`
}

// Client pulls headlines from RSS/Atom feeds, with the CryptoCompare news API as
// a second source.
type Client struct {
	http        *xhttp.Client
	feeds       []string
	fallbackURL string
	now         func() time.Time
}

func New(client *xhttp.Client, feeds []string, fallbackURL string) *Client {
	if fallbackURL == "" {
		fallbackURL = DefaultCryptoCompareURL
	}
	return &Client{http: client, feeds: feeds, fallbackURL: fallbackURL, now: time.Now}
}

// FromFeeds tries each feed in order and returns the items of the first one that
// parses and is non-empty, together with that feed's URL.
func (c *Client) FromFeeds(ctx context.Context) ([]models.NewsItem, string, error) {
	var errs []error
	for _, u := range c.feeds {
		items, err := c.parseFeed(ctx, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		if len(items) == 0 {
			errs = append(errs, fmt.Errorf("%s: %w", u, ErrNoFeeds))
			continue
		}
		return items, u, nil
	}
	if len(errs) == 0 {
		return nil, "", ErrNoFeeds
	}
	return nil, "", errors.Join(errs...)
}

func (c *Client) parseFeed(ctx context.Context, u string) ([]models.NewsItem, error) {
	var body []byte
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     u,
		Headers: map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml"},
	}, &body); err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = u
	}

	out := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		out = append(out, models.NewsItem{
			Title:       title,
			Source:      source,
			PublishedAt: c.published(it),
			URL:         it.Link,
			Summary:     Clean(it.Description, summaryLimit),
		})
	}
	return out, nil
}

// published prefers the publish date, then the update date, then now.
func (c *Client) published(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC()
	default:
		return c.now().UTC()
	}
}

func (c *Client) FromCryptoCompare(ctx context.Context) ([]models.NewsItem, error) {
	var resp cryptoCompareResponse
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.fallbackURL,
	}, &resp); err != nil {
		return nil, fmt.Errorf("cryptocompare news: %w", err)
	}

	out := make([]models.NewsItem, 0, len(resp.Data))
	for _, d := range resp.Data {
		if strings.TrimSpace(d.Title) == "" {
			continue
		}
		source := d.SourceInfo.Name
		if source == "" {
			source = d.Source
		}
		published := c.now().UTC()
		if d.PublishedOn > 0 {
			published = time.Unix(d.PublishedOn, 0).UTC()
		}
		out = append(out, models.NewsItem{
			Title:       strings.TrimSpace(d.Title),
			Source:      source,
			PublishedAt: published,
			URL:         d.URL,
			Summary:     Clean(d.Body, summaryLimit),
		})
	}
	return out, nil
}

// Clean strips markup and entities and truncates to limit runes.
func Clean(s string, limit int) string {
	s = html.UnescapeString(tagPattern.ReplaceAllString(s, " "))
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if limit > 0 && len(r) > limit {
		return strings.TrimSpace(string(r[:limit])) + "..."
	}
	return s
}
