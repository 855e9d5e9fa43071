package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroundme-app/aroundme/internal/config"
	"github.com/aroundme-app/aroundme/internal/pipeline"
	"github.com/aroundme-app/aroundme/pkg/mapbox"
)

// unknownMapbox reverse-geocodes nothing, driving the 422 path.
type unknownMapbox struct{}

func (unknownMapbox) GetPlace(_ context.Context, _ string) (*mapbox.Place, error) {
	return nil, nil
}

func (unknownMapbox) ReverseGeocode(_ context.Context, _, _ float64) (*mapbox.Location, error) {
	return nil, nil
}

func testRouter() http.Handler {
	p := pipeline.New(pipeline.Deps{
		Config: &config.Config{},
		Mapbox: unknownMapbox{},
	})
	return newRouter(p, []string{"*"})
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_LocationsRequiresCoordinates(t *testing.T) {
	t.Parallel()

	for _, target := range []string{
		"/api/locations",
		"/api/locations?lat=45.5",
		"/api/locations?lat=abc&lon=-73.5",
		"/api/locations?lat=95&lon=-73.5",
	} {
		rec := httptest.NewRecorder()
		testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestRouter_UnknownCityIs422(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/locations?lat=0&lon=0", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "known city")
}
