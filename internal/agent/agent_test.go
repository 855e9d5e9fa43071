package agent

import (
	"context"
	"testing"
	"time"

	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/resolve"
	"github.com/aroundme-app/aroundme/pkg/eventregistry"
	"github.com/aroundme-app/aroundme/pkg/googleplaces"
	"github.com/aroundme-app/aroundme/pkg/jina"
	"github.com/aroundme-app/aroundme/pkg/mapbox"
	"github.com/aroundme-app/aroundme/pkg/nominatim"
	"github.com/aroundme-app/aroundme/pkg/serper"
)

// Downtown Montreal, inside the test boundary.
const (
	testLat = 45.5017
	testLng = -73.5673
)

var testLoc = Location{City: "Montreal", Province: "Quebec", Country: "Canada"}

type stubSerper struct{}

func (stubSerper) Search(_ context.Context, _ string) (*serper.SearchResponse, error) {
	return &serper.SearchResponse{}, nil
}

type stubPlaces struct{}

func (stubPlaces) FindPlace(_ context.Context, _ string) (*googleplaces.FindPlaceResponse, error) {
	return &googleplaces.FindPlaceResponse{Status: "ZERO_RESULTS"}, nil
}

// stubNominatim geocodes every query to the same in-boundary coordinate, so
// any candidate without a provided coordinate resolves via the open stage.
type stubNominatim struct{}

func (stubNominatim) Search(_ context.Context, query string, _ int) ([]nominatim.Place, error) {
	return []nominatim.Place{{Lat: testLat, Lng: testLng, DisplayName: query}}, nil
}

type stubMapbox struct{}

func (stubMapbox) GetPlace(_ context.Context, _ string) (*mapbox.Place, error) {
	return &mapbox.Place{
		Name: "Montreal", CenterLat: testLat, CenterLng: testLng,
		BBox: [4]float64{-73.98, 45.40, -73.47, 45.71}, HasBBox: true,
	}, nil
}

func (stubMapbox) ReverseGeocode(_ context.Context, _, _ float64) (*mapbox.Location, error) {
	return &mapbox.Location{City: "Montreal", Province: "Quebec", Country: "Canada"}, nil
}

// stubJina serves canned search results and page reads.
type stubJina struct {
	searchResults []jina.SearchResult
	searchErr     error
	readContent   map[string]string
	searchCalls   int
}

func (s *stubJina) Search(_ context.Context, _ string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	s.searchCalls++
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return &jina.SearchResponse{Data: s.searchResults}, nil
}

func (s *stubJina) Read(_ context.Context, url string) (*jina.ReadResponse, error) {
	return &jina.ReadResponse{Data: jina.ReadData{URL: url, Content: s.readContent[url]}}, nil
}

// stubLLM answers extraction, summary, and inference with canned values.
type stubLLM struct {
	places       []llm.ExtractedPlace
	extractErr   error
	summary      string
	summarizeErr error
	inferLat     float64
	inferLng     float64
	inferOK      bool
}

func (s *stubLLM) RankAddresses(_ context.Context, _, _ string, candidates []string) (int, bool, error) {
	if len(candidates) == 0 {
		return 0, false, nil
	}
	return 0, true, nil
}

func (s *stubLLM) ExtractPlaces(_ context.Context, _, _ string) ([]llm.ExtractedPlace, error) {
	return s.places, s.extractErr
}

func (s *stubLLM) Summarize(_ context.Context, placeName, _ string) (string, error) {
	if s.summarizeErr != nil {
		return "", s.summarizeErr
	}
	if s.summary != "" {
		return s.summary, nil
	}
	return "About " + placeName, nil
}

func (s *stubLLM) InferCoordinates(_ context.Context, _, _ string) (float64, float64, bool, error) {
	return s.inferLat, s.inferLng, s.inferOK, nil
}

type stubNews struct {
	articles []eventregistry.Article
	err      error
	calls    int
}

func (s *stubNews) GetArticles(_ context.Context, _ eventregistry.ArticlesRequest) ([]eventregistry.Article, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.articles, nil
}

// newStubResolver builds a resolver whose open stage always succeeds at the
// test coordinate, with a bbox validator around Montreal.
func newStubResolver(t *testing.T, llmSvc llm.Service) *resolve.Resolver {
	t.Helper()

	boundary := resolve.NewValidator(stubMapbox{}, "Montreal", "Quebec", "Canada", "", 25)
	return resolve.NewResolver(
		stubSerper{}, &stubJina{}, stubNominatim{}, stubPlaces{}, llmSvc,
		boundary, nil, resolve.NewTracker(),
		resolve.Options{
			CandidateTimeout: 5 * time.Second,
			SiteTimeout:      time.Second,
			MaxPerSite:       3,
			ListingSites:     []string{"yelp.com"},
		},
	)
}
