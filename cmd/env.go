package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/internal/config"
	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/pipeline"
	"github.com/aroundme-app/aroundme/internal/resolve"
	"github.com/aroundme-app/aroundme/pkg/anthropic"
	"github.com/aroundme-app/aroundme/pkg/eventregistry"
	"github.com/aroundme-app/aroundme/pkg/googleplaces"
	"github.com/aroundme-app/aroundme/pkg/jina"
	"github.com/aroundme-app/aroundme/pkg/mapbox"
	"github.com/aroundme-app/aroundme/pkg/nominatim"
	"github.com/aroundme-app/aroundme/pkg/serper"
)

// env holds the long-lived clients behind a pipeline.
type env struct {
	Pipeline *pipeline.Pipeline
	cache    *resolve.Cache
}

// newEnv builds the provider clients and pipeline from configuration.
func newEnv(cfg *config.Config) (*env, error) {
	var cache *resolve.Cache
	if cfg.Resolver.CachePath != "" {
		c, err := resolve.OpenCache(cfg.Resolver.CachePath, time.Duration(cfg.Resolver.CacheTTLHours)*time.Hour)
		if err != nil {
			// The cache is an optimization; run without it rather than fail.
			zap.L().Warn("geocode cache unavailable", zap.String("path", cfg.Resolver.CachePath), zap.Error(err))
		} else {
			cache = c
		}
	}

	quota := resolve.NewTracker()
	quota.SetLimit("nominatim", cfg.Nominatim.RPS, 1)

	p := pipeline.New(pipeline.Deps{
		Config: cfg,
		Search: serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL)),
		Reader: jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
		),
		Geocoder: nominatim.NewClient(
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
			nominatim.WithRateLimit(cfg.Nominatim.RPS),
		),
		Places: googleplaces.NewClient(cfg.GooglePlaces.Key, googleplaces.WithBaseURL(cfg.GooglePlaces.BaseURL)),
		Mapbox: mapbox.NewClient(cfg.Mapbox.Token, mapbox.WithBaseURL(cfg.Mapbox.BaseURL)),
		News:   eventregistry.NewClient(cfg.EventRegistry.Key, eventregistry.WithBaseURL(cfg.EventRegistry.BaseURL)),
		LLM:    llm.NewService(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model),
		Cache:  cache,
		Quota:  quota,
	})

	return &env{Pipeline: p, cache: cache}, nil
}

func (e *env) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			zap.L().Warn("closing geocode cache", zap.Error(err))
		}
	}
}
