// Package mapbox provides a client for the Mapbox Geocoding API, used for
// city boundary lookups and reverse geocoding of user locations.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client performs forward and reverse place lookups.
type Client interface {
	// GetPlace looks up a named place (city-level) and returns its center
	// and bounding box when available.
	GetPlace(ctx context.Context, name string) (*Place, error)
	// ReverseGeocode resolves a coordinate to city/province/country.
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Location, error)
}

// Place describes a city-level feature.
type Place struct {
	Name      string
	CenterLat float64
	CenterLng float64
	// Bounding box, present when HasBBox is true: [minLng, minLat, maxLng, maxLat].
	BBox    [4]float64
	HasBBox bool
}

// Location is the administrative context of a coordinate.
type Location struct {
	City     string
	Province string
	Country  string
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Text    string    `json:"text"`
	Center  []float64 `json:"center"`
	BBox    []float64 `json:"bbox"`
	Context []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"context"`
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
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Mapbox Geocoding client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
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

func (c *httpClient) GetPlace(ctx context.Context, name string) (*Place, error) {
	fc, err := c.query(ctx, url.PathEscape(name), url.Values{"types": {"place"}, "limit": {"1"}})
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	if len(f.Center) != 2 {
		return nil, eris.Errorf("mapbox: malformed center for %q", name)
	}

	p := &Place{
		Name:      f.Text,
		CenterLng: f.Center[0],
		CenterLat: f.Center[1],
	}
	if len(f.BBox) == 4 {
		copy(p.BBox[:], f.BBox)
		p.HasBBox = true
	}
	return p, nil
}

func (c *httpClient) ReverseGeocode(ctx context.Context, lat, lng float64) (*Location, error) {
	fc, err := c.query(ctx, fmt.Sprintf("%f,%f", lng, lat), url.Values{"types": {"place"}})
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	loc := &Location{City: f.Text}
	for _, item := range f.Context {
		switch {
		case strings.HasPrefix(item.ID, "region"):
			loc.Province = item.Text
		case strings.HasPrefix(item.ID, "country"):
			loc.Country = item.Text
		}
	}
	return loc, nil
}

func (c *httpClient) query(ctx context.Context, path string, params url.Values) (*featureCollection, error) {
	params.Set("access_token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path+".json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "mapbox: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mapbox: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mapbox: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("mapbox: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, eris.Wrap(err, "mapbox: unmarshal response")
	}
	return &fc, nil
}
