package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Blue Door Cafe Springfield", body["q"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{
			Organic: []OrganicResult{
				{Title: "Blue Door Cafe", Link: "https://example.com", Snippet: "12 Main St"},
			},
			KnowledgeGraph: &KnowledgeGraph{
				Title:      "Blue Door Cafe",
				Type:       "Cafe",
				Attributes: map[string]string{"Address": "12 Main St, Springfield"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "Blue Door Cafe Springfield")

	require.NoError(t, err)
	require.Len(t, got.Organic, 1)
	assert.Equal(t, "12 Main St, Springfield", got.KnowledgeGraph.Address())
}

func TestSearch_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limit"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{broken`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestKnowledgeGraph_Address(t *testing.T) {
	t.Parallel()

	var nilKG *KnowledgeGraph
	assert.Empty(t, nilKG.Address())

	kg := &KnowledgeGraph{Attributes: map[string]string{"Hours": "9-5"}}
	assert.Empty(t, kg.Address())

	kg = &KnowledgeGraph{Attributes: map[string]string{"address": "5 King St W"}}
	assert.Equal(t, "5 King St W", kg.Address())
}

func TestKnowledgeGraph_Coordinate(t *testing.T) {
	t.Parallel()

	var nilKG *KnowledgeGraph
	_, _, ok := nilKG.Coordinate()
	assert.False(t, ok)

	kg := &KnowledgeGraph{Attributes: map[string]string{"GPS Coordinates": "45.5017, -73.5673"}}
	lat, lng, ok := kg.Coordinate()
	require.True(t, ok)
	assert.InDelta(t, 45.5017, lat, 1e-9)
	assert.InDelta(t, -73.5673, lng, 1e-9)

	kg = &KnowledgeGraph{Attributes: map[string]string{"Coordinates": "not a pair"}}
	_, _, ok = kg.Coordinate()
	assert.False(t, ok)
}
