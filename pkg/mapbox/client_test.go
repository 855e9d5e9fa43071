package mapbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlace_WithBBox(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Toronto.json", r.URL.Path)
		assert.Equal(t, "place", r.URL.Query().Get("types"))
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))

		w.Write([]byte(`{"features":[{"text":"Toronto","center":[-79.3832,43.6532],"bbox":[-79.6393,43.581,-79.1152,43.8555]}]}`))
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	got, err := client.GetPlace(context.Background(), "Toronto")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Toronto", got.Name)
	assert.InDelta(t, 43.6532, got.CenterLat, 1e-9)
	assert.True(t, got.HasBBox)
	assert.InDelta(t, -79.6393, got.BBox[0], 1e-9)
	assert.InDelta(t, 43.8555, got.BBox[3], 1e-9)
}

func TestGetPlace_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	got, err := client.GetPlace(context.Background(), "Nowheresville")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReverseGeocode_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[{"text":"Toronto","center":[-79.38,43.65],"context":[
			{"id":"region.1234","text":"Ontario"},
			{"id":"country.5678","text":"Canada"}
		]}]}`))
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	got, err := client.ReverseGeocode(context.Background(), 43.65, -79.38)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Toronto", got.City)
	assert.Equal(t, "Ontario", got.Province)
	assert.Equal(t, "Canada", got.Country)
}

func TestReverseGeocode_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	client := NewClient("bad", WithBaseURL(srv.URL))
	_, err := client.ReverseGeocode(context.Background(), 43.65, -79.38)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
