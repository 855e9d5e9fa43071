// Package eventregistry provides a client for the Event Registry
// (newsapi.ai) article search API.
package eventregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://eventregistry.org/api/v1"

// Client searches news articles with location entity annotations.
type Client interface {
	GetArticles(ctx context.Context, req ArticlesRequest) ([]Article, error)
}

// ArticlesRequest configures an article search.
type ArticlesRequest struct {
	Keyword     string
	Count       int
	LocationURI string
}

// Article is a single news article.
type Article struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	URL      string   `json:"url"`
	Date     string   `json:"date"`
	Source   Source   `json:"source"`
	Entities Entities `json:"entities"`
}

// Source names the publishing outlet.
type Source struct {
	Title string `json:"title"`
}

// Entities holds annotated entities; only locations are consumed here.
type Entities struct {
	Locations []LocationEntity `json:"locations"`
}

// LocationEntity is an annotated place mention, optionally with coordinates.
type LocationEntity struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// HasCoord reports whether the entity carries a usable coordinate.
func (l LocationEntity) HasCoord() bool {
	return l.Lat != nil && l.Lng != nil
}

type articlesResponse struct {
	Articles struct {
		Results []Article `json:"results"`
	} `json:"articles"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Event Registry client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetArticles(ctx context.Context, req ArticlesRequest) ([]Article, error) {
	count := req.Count
	if count <= 0 {
		count = 15
	}

	payload := map[string]any{
		"resultType":     "articles",
		"keyword":        req.Keyword,
		"lang":           "eng",
		"articlesSortBy": "date",
		"articlesCount":  count,
		"isDuplicate":    false,
		"dataType":       []string{"news", "blog", "pr"},
		"apiKey":         c.apiKey,
	}
	if req.LocationURI != "" {
		payload["locationUri"] = req.LocationURI
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "eventregistry: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/article/getArticles", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "eventregistry: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "eventregistry: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "eventregistry: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("eventregistry: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result articlesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "eventregistry: unmarshal response")
	}

	return result.Articles.Results, nil
}
