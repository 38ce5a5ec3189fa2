package metricool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://app.metricool.com/api"
	dateTimeLayout  = "2006-01-02T15:04:05"
	maxYouTubeTitle = 100
)

// Config carries the account credentials and posting defaults.
type Config struct {
	BaseURL   string
	Token     string
	UserID    string
	BlogID    string
	Timezone  string
	Platforms []string
	Timeout   time.Duration
}

// Post is one scheduled publication.
type Post struct {
	MediaURL string
	Text     string
	// Title is used where a network wants one (YouTube); defaults to Text.
	Title string
	At    time.Time
}

// Client schedules posts through the Metricool planner API.
type Client struct {
	cfg        Config
	loc        *time.Location
	httpClient *http.Client
}

// NewClient validates credentials and resolves the posting timezone.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" || cfg.UserID == "" || cfg.BlogID == "" {
		return nil, errors.New("metricool: token, user id, and blog id are required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("metricool: timezone %q: %w", cfg.Timezone, err)
	}
	if len(cfg.Platforms) == 0 {
		return nil, errors.New("metricool: at least one platform is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{cfg: cfg, loc: loc, httpClient: &http.Client{Timeout: timeout}}, nil
}

type publicationDate struct {
	DateTime string `json:"dateTime"`
	Timezone string `json:"timezone"`
}

type provider struct {
	Network string `json:"network"`
}

// Request is the scheduler payload. Network sections are present only for
// configured platforms.
type Request struct {
	Text            string          `json:"text"`
	PublicationDate publicationDate `json:"publicationDate"`
	Media           []string        `json:"media"`
	Providers       []provider      `json:"providers"`
	AutoPublish     bool            `json:"autoPublish"`
	InstagramData   *instagramData  `json:"instagramData,omitempty"`
	YouTubeData     *youTubeData    `json:"youtubeData,omitempty"`
	TikTokData      *tikTokData     `json:"tiktokData,omitempty"`
	FacebookData    *facebookData   `json:"facebookData,omitempty"`
}

type instagramData struct {
	Type        string `json:"type"`
	AutoPublish bool   `json:"autoPublish"`
}

type youTubeData struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Privacy     string `json:"privacy"`
	MadeForKids bool   `json:"madeForKids"`
}

type tikTokData struct {
	DisableComment bool `json:"disableComment"`
	DisableDuet    bool `json:"disableDuet"`
	DisableStitch  bool `json:"disableStitch"`
}

type facebookData struct {
	Type string `json:"type"`
}

// BuildRequest renders the payload for post.
func (c *Client) BuildRequest(post Post) Request {
	req := Request{
		Text: post.Text,
		PublicationDate: publicationDate{
			DateTime: post.At.In(c.loc).Format(dateTimeLayout),
			Timezone: c.cfg.Timezone,
		},
		Media:       []string{post.MediaURL},
		AutoPublish: true,
	}
	title := post.Title
	if title == "" {
		title = post.Text
	}
	for _, network := range c.cfg.Platforms {
		req.Providers = append(req.Providers, provider{Network: network})
		switch network {
		case "INSTAGRAM":
			req.InstagramData = &instagramData{Type: "REEL", AutoPublish: true}
		case "YOUTUBE":
			req.YouTubeData = &youTubeData{Title: truncateRunes(title, maxYouTubeTitle), Type: "SHORT", Privacy: "PUBLIC"}
		case "TIKTOK":
			req.TikTokData = &tikTokData{}
		case "FACEBOOK":
			req.FacebookData = &facebookData{Type: "REEL"}
		}
	}
	return req
}

// Schedule creates the post and returns the planner's id for it.
func (c *Client) Schedule(ctx context.Context, post Post) (string, error) {
	if post.MediaURL == "" {
		return "", errors.New("metricool schedule: media url required")
	}
	encoded, err := json.Marshal(c.BuildRequest(post))
	if err != nil {
		return "", fmt.Errorf("metricool schedule: encode: %w", err)
	}
	query := url.Values{}
	query.Set("blogId", c.cfg.BlogID)
	query.Set("userId", c.cfg.UserID)
	endpoint := c.cfg.BaseURL + "/v2/scheduler/posts?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("metricool schedule: new request: %w", err)
	}
	req.Header.Set("X-Mc-Auth", c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("metricool schedule: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("metricool schedule: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var decoded struct {
		Data struct {
			ID any `json:"id"`
		} `json:"data"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return "", fmt.Errorf("metricool schedule: decode response: %w", err)
		}
	}
	if decoded.Data.ID == nil {
		return "", nil
	}
	return fmt.Sprint(decoded.Data.ID), nil
}

// StatusError is returned when the planner rejects a post.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("metricool schedule: http %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports a rejected token, which no retry can fix.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
