// Package pipeline runs one POI discovery request end to end: boundary
// setup, concurrent source agents, and aggregation.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aroundme-app/aroundme/internal/agent"
	"github.com/aroundme-app/aroundme/internal/aggregate"
	"github.com/aroundme-app/aroundme/internal/config"
	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/model"
	"github.com/aroundme-app/aroundme/internal/resolve"
	"github.com/aroundme-app/aroundme/pkg/eventregistry"
	"github.com/aroundme-app/aroundme/pkg/googleplaces"
	"github.com/aroundme-app/aroundme/pkg/jina"
	"github.com/aroundme-app/aroundme/pkg/mapbox"
	"github.com/aroundme-app/aroundme/pkg/nominatim"
	"github.com/aroundme-app/aroundme/pkg/serper"
)

// Deps carries the long-lived clients a pipeline is built from. Per-run
// state (boundary validator, resolver, agents) is created inside Run.
type Deps struct {
	Config   *config.Config
	Search   serper.Client
	Reader   jina.Client
	Geocoder nominatim.Client
	Places   googleplaces.Client
	Mapbox   mapbox.Client
	News     eventregistry.Client
	LLM      llm.Service
	Cache    *resolve.Cache // optional
	Quota    *resolve.Tracker
	Portals  []agent.Portal // optional municipal portal override
}

// Pipeline turns a location into a deduplicated POI list.
type Pipeline struct {
	deps Deps
}

// New creates a pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	if deps.Quota == nil {
		deps.Quota = resolve.NewTracker()
	}
	return &Pipeline{deps: deps}
}

// Locate reverse-geocodes a user coordinate to the city the run targets.
func (p *Pipeline) Locate(ctx context.Context, lat, lng float64) (agent.Location, error) {
	loc, err := p.deps.Mapbox.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return agent.Location{}, eris.Wrap(err, "pipeline: reverse geocode")
	}
	if loc == nil || loc.City == "" {
		return agent.Location{}, eris.Wrapf(resolve.ErrUnknownBoundary, "no city at %f,%f", lat, lng)
	}
	return agent.Location{City: loc.City, Province: loc.Province, Country: loc.Country}, nil
}

// Run executes one discovery request. Agents run concurrently under a
// whole-request deadline; agents that run out of time contribute whatever
// they finished, so a slow source degrades the result instead of failing
// it. The returned error is non-nil only when the city boundary cannot be
// resolved.
func (p *Pipeline) Run(ctx context.Context, loc agent.Location) ([]model.POI, error) {
	cfg := p.deps.Config
	requestID := uuid.NewString()
	log := zap.L().With(
		zap.String("request_id", requestID),
		zap.String("city", loc.City),
	)

	timeout := time.Duration(cfg.Pipeline.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	log.Info("discovery run started")

	resolver := p.newResolver(loc)
	agents := p.newAgents(resolver)

	results := make([][]model.POI, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, ag := range agents {
		g.Go(func() error {
			pois, err := ag.Discover(gctx, loc)
			if err != nil {
				if errors.Is(err, resolve.ErrUnknownBoundary) {
					return err
				}
				log.Warn("agent failed", zap.String("agent", ag.Name()), zap.Error(err))
				return nil
			}
			results[i] = pois
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := aggregate.New(cfg.Aggregate.H3Resolution).Merge(results...)

	log.Info("discovery run finished",
		zap.Int("pois", len(merged)),
		zap.Duration("elapsed", time.Since(started)),
		zap.Any("provider_calls", p.deps.Quota.Snapshot()),
	)
	return merged, nil
}

func (p *Pipeline) newResolver(loc agent.Location) *resolve.Resolver {
	cfg := p.deps.Config

	boundary := resolve.NewValidator(
		p.deps.Mapbox,
		loc.City, loc.Province, loc.Country,
		cfg.Boundary.PolygonFile,
		cfg.Boundary.RadiusKM,
	)

	return resolve.NewResolver(
		p.deps.Search, p.deps.Reader, p.deps.Geocoder, p.deps.Places, p.deps.LLM,
		boundary, p.deps.Cache, p.deps.Quota,
		resolve.Options{
			CandidateTimeout: time.Duration(cfg.Resolver.CandidateTimeoutSecs) * time.Second,
			SiteTimeout:      time.Duration(cfg.Resolver.SiteTimeoutSecs) * time.Second,
			MaxPerSite:       cfg.Resolver.MaxPerSite,
			ListingSites:     cfg.Resolver.ListingSites,
		},
	)
}

func (p *Pipeline) newAgents(resolver *resolve.Resolver) []agent.Agent {
	cfg := p.deps.Config

	var municipalOpts []agent.MunicipalOption
	if len(p.deps.Portals) > 0 {
		municipalOpts = append(municipalOpts, agent.WithPortals(p.deps.Portals))
	}

	return []agent.Agent{
		agent.NewCommunityAgent(p.deps.Reader, p.deps.LLM, resolver,
			cfg.Agents.MaxCandidates, cfg.Resolver.MaxConcurrent),
		agent.NewNewsAgent(p.deps.News, p.deps.LLM, resolver,
			cfg.Agents.NewsArticles, cfg.Agents.MaxCandidates, cfg.Resolver.MaxConcurrent),
		agent.NewMunicipalAgent(p.deps.LLM, resolver,
			cfg.Agents.MunicipalMax, cfg.Resolver.MaxConcurrent, municipalOpts...),
	}
}
