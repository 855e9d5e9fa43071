package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroundme-app/aroundme/pkg/anthropic"
)

// fakeAnthropic returns canned responses keyed by substring of the prompt.
type fakeAnthropic struct {
	response string
	err      error
	requests []anthropic.MessageRequest
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Text: f.response}, nil
}

func TestRankAddresses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		answer  string
		wantIdx int
		wantOK  bool
	}{
		{"picks by number", "2", 1, true},
		{"tolerates trailing text", "3. because it matches", 2, true},
		{"none answer", "NONE", 0, false},
		{"lowercase none", "none", 0, false},
		{"out of range", "7", 0, false},
		{"garbage", "the second one", 0, false},
	}

	candidates := []string{"1 First St", "2 Second Ave", "3 Third Blvd"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeAnthropic{response: tt.answer}
			svc := NewService(fake, "test-model")

			idx, ok, err := svc.RankAddresses(context.Background(), "Joe's Diner", "Montreal", candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantIdx, idx)
			}
		})
	}
}

func TestRankAddresses_SingleCandidateSkipsModel(t *testing.T) {
	t.Parallel()

	fake := &fakeAnthropic{response: "should not be called"}
	svc := NewService(fake, "test-model")

	idx, ok, err := svc.RankAddresses(context.Background(), "Joe's Diner", "Montreal", []string{"1 First St"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Empty(t, fake.requests)
}

func TestRankAddresses_NoCandidates(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeAnthropic{}, "test-model")
	_, ok, err := svc.RankAddresses(context.Background(), "x", "y", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRankAddresses_ProviderError(t *testing.T) {
	t.Parallel()

	fake := &fakeAnthropic{err: errors.New("api down")}
	svc := NewService(fake, "test-model")

	_, _, err := svc.RankAddresses(context.Background(), "x", "y", []string{"a", "b"})
	require.Error(t, err)
}

func TestExtractPlaces(t *testing.T) {
	t.Parallel()

	fake := &fakeAnthropic{response: `[
		{"name": "Cafe Olimpico", "category": "cafe", "context": "best espresso in Mile End"},
		{"name": "  ", "category": "park", "context": "dropped"},
		{"name": "Parc La Fontaine", "category": "park", "context": "great for picnics"}
	]`}
	svc := NewService(fake, "test-model")

	places, err := svc.ExtractPlaces(context.Background(), "some reddit thread", "Montreal")
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Cafe Olimpico", places[0].Name)
	assert.Equal(t, "Parc La Fontaine", places[1].Name)
}

func TestExtractPlaces_CodeFence(t *testing.T) {
	t.Parallel()

	fake := &fakeAnthropic{response: "```json\n[{\"name\":\"Schwartz's\",\"category\":\"deli\",\"context\":\"smoked meat\"}]\n```"}
	svc := NewService(fake, "test-model")

	places, err := svc.ExtractPlaces(context.Background(), "text", "Montreal")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Schwartz's", places[0].Name)
}

func TestExtractPlaces_MalformedAnswer(t *testing.T) {
	t.Parallel()

	fake := &fakeAnthropic{response: "I found several places worth mentioning"}
	svc := NewService(fake, "test-model")

	places, err := svc.ExtractPlaces(context.Background(), "text", "Montreal")
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestSummarize_CapsLength(t *testing.T) {
	t.Parallel()

	fake := &fakeAnthropic{response: strings.Repeat("a very long sentence ", 40)}
	svc := NewService(fake, "test-model")

	got, err := svc.Summarize(context.Background(), "Joe's Diner", "context text")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), maxSummaryLength)
	assert.NotEmpty(t, got)
}

func TestInferCoordinates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		answer  string
		wantLat float64
		wantLng float64
		wantOK  bool
	}{
		{"valid pair", "45.5017,-73.5673", 45.5017, -73.5673, true},
		{"spaces tolerated", " 45.5017 , -73.5673 ", 45.5017, -73.5673, true},
		{"unknown", "UNKNOWN", 0, 0, false},
		{"out of range", "145.0,-73.5", 0, 0, false},
		{"prose answer", "It is near the old port", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeAnthropic{response: tt.answer}
			svc := NewService(fake, "test-model")

			lat, lng, ok, err := svc.InferCoordinates(context.Background(), "corner of St-Laurent and Rachel", "Montreal")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.wantLat, lat, 1e-9)
				assert.InDelta(t, tt.wantLng, lng, 1e-9)
			}
		})
	}
}
