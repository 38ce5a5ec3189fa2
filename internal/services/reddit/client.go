// Package reddit reads public subreddit listings to find short, popular
// videos for the discovery job.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://www.reddit.com"
	DefaultUserAgent = "Mozilla/5.0 (compatible; VideoBot/1.0)"
	listingLimit     = 25
)

// Post is the subset of a listing child the finder cares about.
type Post struct {
	ID          string
	Title       string
	Ups         int
	IsVideo     bool
	Duration    float64
	Permalink   string
	FallbackURL string
	Subreddit   string
}

// URL is the canonical post address handed to the downloader.
func (p Post) URL() string {
	return DefaultBaseURL + p.Permalink
}

// Client fetches listings from the public JSON endpoints.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient builds a client; empty values fall back to the public endpoint.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: baseURL, userAgent: userAgent, httpClient: &http.Client{Timeout: timeout}}
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				Ups       int    `json:"ups"`
				IsVideo   bool   `json:"is_video"`
				Permalink string `json:"permalink"`
				Subreddit string `json:"subreddit"`
				Media     *struct {
					RedditVideo *struct {
						FallbackURL string  `json:"fallback_url"`
						Duration    float64 `json:"duration"`
					} `json:"reddit_video"`
				} `json:"media"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Hot returns the first page of the subreddit's hot listing.
func (c *Client) Hot(ctx context.Context, subreddit string) ([]Post, error) {
	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, fmt.Errorf("reddit hot: subreddit required")
	}
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", c.baseURL, url.PathEscape(subreddit), listingLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit hot: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit hot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reddit hot: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded listing
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("reddit hot: decode listing: %w", err)
	}

	posts := make([]Post, 0, len(decoded.Data.Children))
	for _, child := range decoded.Data.Children {
		d := child.Data
		post := Post{
			ID:        d.ID,
			Title:     strings.TrimSpace(d.Title),
			Ups:       d.Ups,
			IsVideo:   d.IsVideo,
			Permalink: d.Permalink,
			Subreddit: d.Subreddit,
		}
		if d.Media != nil && d.Media.RedditVideo != nil {
			post.FallbackURL = d.Media.RedditVideo.FallbackURL
			post.Duration = d.Media.RedditVideo.Duration
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Filter keeps hosted videos with at least minUps upvotes that run no longer
// than maxDuration seconds, most upvoted first.
func Filter(posts []Post, minUps int, maxDuration float64) []Post {
	kept := make([]Post, 0, len(posts))
	for _, p := range posts {
		if !p.IsVideo || p.FallbackURL == "" || p.ID == "" {
			continue
		}
		if p.Ups < minUps || p.Duration > maxDuration {
			continue
		}
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Ups > kept[j].Ups })
	return kept
}
