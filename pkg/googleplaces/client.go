// Package googleplaces provides a client for the Google Places
// find-place-from-text API.
package googleplaces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// Client performs free-text place searches.
type Client interface {
	FindPlace(ctx context.Context, input string) (*FindPlaceResponse, error)
}

// FindPlaceResponse is the parsed response from findplacefromtext.
type FindPlaceResponse struct {
	Status     string      `json:"status"`
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a single place match.
type Candidate struct {
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Geometry         Geometry `json:"geometry"`
}

// Geometry holds the candidate's location.
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
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

// NewClient creates a Google Places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) FindPlace(ctx context.Context, input string) (*FindPlaceResponse, error) {
	params := url.Values{}
	params.Set("input", input)
	params.Set("inputtype", "textquery")
	params.Set("fields", "name,formatted_address,geometry/location")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/findplacefromtext/json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "googleplaces: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "googleplaces: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "googleplaces: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("googleplaces: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result FindPlaceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "googleplaces: unmarshal response")
	}

	// OVER_QUERY_LIMIT and REQUEST_DENIED surface as errors so callers can
	// classify them; ZERO_RESULTS is an ordinary empty response.
	switch result.Status {
	case "OK", "ZERO_RESULTS":
		return &result, nil
	default:
		return nil, eris.Errorf("googleplaces: status %s", result.Status)
	}
}
