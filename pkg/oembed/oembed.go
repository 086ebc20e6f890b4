package oembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoNotEmbeddable = errors.New("video is not embeddable")
)

type VideoData struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type Client struct {
	httpClient       *http.Client
	youtubeOEmbedURL string
	youtubePageURL   string
	vimeoOEmbedURL   string
}

type Option func(*Client)

// WithEndpoints overrides the provider endpoints. Used by tests.
func WithEndpoints(youtubeOEmbed, youtubePage, vimeoOEmbed string) Option {
	return func(c *Client) {
		c.youtubeOEmbedURL = youtubeOEmbed
		c.youtubePageURL = youtubePage
		c.vimeoOEmbedURL = vimeoOEmbed
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: 5 * time.Second},
		youtubeOEmbedURL: "https://www.youtube.com/oembed",
		youtubePageURL:   "https://youtu.be/",
		vimeoOEmbedURL:   "https://vimeo.com/api/oembed.json",
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// YouTube resolves video metadata by id, falling back to scraping the watch page
// when the video refuses embedding.
func (c *Client) YouTube(ctx context.Context, videoID string) (*VideoData, error) {
	target := "https://www.youtube.com/watch?v=" + videoID
	videoData, err := c.get(ctx, c.youtubeOEmbedURL, target)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with embed: %w", err)
		}

		videoData, err = c.getFromPage(ctx, videoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	return videoData, nil
}

func (c *Client) Vimeo(ctx context.Context, videoID string) (*VideoData, error) {
	videoData, err := c.get(ctx, c.vimeoOEmbedURL, "https://vimeo.com/"+videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vimeo video data: %w", err)
	}

	return videoData, nil
}

func (c *Client) get(ctx context.Context, endpoint, target string) (*VideoData, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("url", target)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return nil, ErrVideoNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, ErrVideoNotEmbeddable
		default:
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	var result VideoData
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	return &result, nil
}
