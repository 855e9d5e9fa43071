package googleplaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPlace_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/findplacefromtext/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Blue Door Cafe Springfield", q.Get("input"))
		assert.Equal(t, "textquery", q.Get("inputtype"))
		assert.Equal(t, "test-key", q.Get("key"))

		json.NewEncoder(w).Encode(FindPlaceResponse{
			Status: "OK",
			Candidates: []Candidate{
				{
					Name:             "Blue Door Cafe",
					FormattedAddress: "12 Main St, Springfield",
					Geometry:         Geometry{Location: LatLng{Lat: 39.8, Lng: -89.65}},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.FindPlace(context.Background(), "Blue Door Cafe Springfield")

	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.InDelta(t, 39.8, got.Candidates[0].Geometry.Location.Lat, 1e-9)
}

func TestFindPlace_ZeroResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FindPlaceResponse{Status: "ZERO_RESULTS"})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.FindPlace(context.Background(), "nothing here")

	require.NoError(t, err)
	assert.Empty(t, got.Candidates)
}

func TestFindPlace_QuotaExceeded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FindPlaceResponse{Status: "OVER_QUERY_LIMIT"})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.FindPlace(context.Background(), "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OVER_QUERY_LIMIT")
}
