// Package resolve turns POI candidates into validated coordinates via a
// staged fallback across geocoding providers.
package resolve

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/model"
	"github.com/aroundme-app/aroundme/internal/resilience"
	"github.com/aroundme-app/aroundme/pkg/googleplaces"
	"github.com/aroundme-app/aroundme/pkg/jina"
	"github.com/aroundme-app/aroundme/pkg/nominatim"
	"github.com/aroundme-app/aroundme/pkg/serper"
)

// Options tunes the resolver's budgets and the site-scoped search stage.
type Options struct {
	// CandidateTimeout is the wall-clock budget per candidate across all
	// stages. When it expires the candidate resolves to not-found.
	CandidateTimeout time.Duration

	// SiteTimeout bounds each listing-site search; a slow site is skipped,
	// not retried.
	SiteTimeout time.Duration

	// MaxPerSite caps address candidates extracted per listing site.
	MaxPerSite int

	// ListingSites are the domains searched in the site-scoped stage,
	// tried in order.
	ListingSites []string
}

// Resolver resolves candidates through a fixed stage order: knowledge-graph
// lookup, site-scoped address extraction with ranking, commercial place
// search, then open free-text geocoding. Every stage result is validated
// against the city boundary; an out-of-boundary hit advances to the next
// stage rather than retrying the current one.
//
// A Resolver is scoped to one pipeline run (it carries the run's boundary
// validator) and is safe for concurrent use within that run.
type Resolver struct {
	search   serper.Client
	reader   jina.Client
	geocoder nominatim.Client
	places   googleplaces.Client
	llm      llm.Service
	boundary *Validator
	cache    *Cache
	quota    *Tracker
	opts     Options
}

// NewResolver wires a resolver for one run. cache may be nil.
func NewResolver(
	search serper.Client,
	reader jina.Client,
	geocoder nominatim.Client,
	places googleplaces.Client,
	llmSvc llm.Service,
	boundary *Validator,
	cache *Cache,
	quota *Tracker,
	opts Options,
) *Resolver {
	if opts.CandidateTimeout <= 0 {
		opts.CandidateTimeout = 45 * time.Second
	}
	if opts.SiteTimeout <= 0 {
		opts.SiteTimeout = 10 * time.Second
	}
	if opts.MaxPerSite <= 0 {
		opts.MaxPerSite = 3
	}
	if quota == nil {
		quota = NewTracker()
	}
	return &Resolver{
		search:   search,
		reader:   reader,
		geocoder: geocoder,
		places:   places,
		llm:      llmSvc,
		boundary: boundary,
		cache:    cache,
		quota:    quota,
		opts:     opts,
	}
}

// Resolve geocodes one candidate. It returns (poi, true, nil) on success and
// (zero, false, nil) when every stage came up empty; the error is non-nil
// only when the city boundary itself cannot be resolved. Resolve never
// mutates the candidate and is idempotent for identical inputs against
// identical provider responses.
func (r *Resolver) Resolve(ctx context.Context, cand model.POICandidate) (model.POI, bool, error) {
	var zero model.POI

	ctx, cancel := context.WithTimeout(ctx, r.opts.CandidateTimeout)
	defer cancel()

	log := zap.L().With(
		zap.String("candidate", cand.Name),
		zap.String("source", string(cand.SourceType)),
	)

	// Pre-geocoded candidates skip the provider chain but not validation.
	if cand.HasCoord {
		ok, err := r.boundary.Contains(ctx, cand.Lat, cand.Lng)
		if err != nil {
			return zero, false, err
		}
		if !ok {
			log.Debug("provided coordinate outside boundary")
			return zero, false, nil
		}
		return buildPOI(cand, cand.Lat, cand.Lng, model.ResolvedProvided), true, nil
	}

	stages := []struct {
		name string
		fn   func(context.Context, model.POICandidate, *zap.Logger) (float64, float64, bool, error)
	}{
		{model.ResolvedDirect, r.stageDirect},
		{model.ResolvedRanked, r.stageRanked},
		{model.ResolvedPlaces, r.stagePlaces},
		{model.ResolvedOpen, r.stageOpen},
	}

	for _, stage := range stages {
		if ctx.Err() != nil {
			log.Debug("candidate budget exhausted", zap.String("stage", stage.name))
			break
		}
		lat, lng, ok, err := stage.fn(ctx, cand, log)
		if err != nil {
			return zero, false, err
		}
		if ok {
			log.Debug("candidate resolved", zap.String("stage", stage.name))
			return buildPOI(cand, lat, lng, stage.name), true, nil
		}
	}

	log.Debug("candidate not resolved by any stage")
	return zero, false, nil
}

// stageDirect looks the place up in the search knowledge graph and geocodes
// the structured address when one is present.
func (r *Resolver) stageDirect(ctx context.Context, cand model.POICandidate, log *zap.Logger) (float64, float64, bool, error) {
	resp, err := resilience.DoVal(ctx, r.retryConfig("serper", "search"), func(ctx context.Context) (*serper.SearchResponse, error) {
		if err := r.quota.Acquire(ctx, "serper"); err != nil {
			return nil, err
		}
		return r.search.Search(ctx, cand.Name+" "+cand.City)
	})
	if err != nil {
		log.Debug("knowledge graph lookup failed", zap.Error(err))
		return 0, 0, false, nil
	}

	// A coordinate attribute skips the geocoder entirely.
	if lat, lng, ok := resp.KnowledgeGraph.Coordinate(); ok {
		inBounds, err := r.boundary.Contains(ctx, lat, lng)
		if err != nil {
			return 0, 0, false, err
		}
		if inBounds {
			return lat, lng, true, nil
		}
		log.Debug("knowledge graph coordinate outside boundary")
	}

	addr := resp.KnowledgeGraph.Address()
	if addr == "" {
		return 0, 0, false, nil
	}
	return r.geocodeAddress(ctx, addr, cand, log)
}

// stageRanked searches a fixed list of listing sites for the place, extracts
// street addresses from the result text, has the model pick the most
// plausible one, and geocodes it.
func (r *Resolver) stageRanked(ctx context.Context, cand model.POICandidate, log *zap.Logger) (float64, float64, bool, error) {
	candidates := r.collectSiteAddresses(ctx, cand, log)
	if len(candidates) == 0 {
		return 0, 0, false, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	idx, chosen, err := r.llm.RankAddresses(ctx, cand.Name, cand.City, texts)
	if err != nil {
		log.Debug("address ranking failed", zap.Error(err))
		return 0, 0, false, nil
	}
	if !chosen {
		return 0, 0, false, nil
	}
	return r.geocodeAddress(ctx, texts[idx], cand, log)
}

// collectSiteAddresses runs the site-scoped searches. Each site gets its own
// timeout; a site that fails or times out is skipped.
func (r *Resolver) collectSiteAddresses(ctx context.Context, cand model.POICandidate, log *zap.Logger) []AddressCandidate {
	query := cand.Name + " " + cand.City + " address"

	var out []AddressCandidate
	for _, site := range r.opts.ListingSites {
		if ctx.Err() != nil {
			break
		}

		siteCtx, cancel := context.WithTimeout(ctx, r.opts.SiteTimeout)
		resp, err := func() (*jina.SearchResponse, error) {
			if err := r.quota.Acquire(siteCtx, "jina"); err != nil {
				return nil, err
			}
			return r.reader.Search(siteCtx, query, jina.WithSiteFilter(site))
		}()
		cancel()
		if err != nil {
			log.Debug("listing site search failed", zap.String("site", site), zap.Error(err))
			continue
		}

		var text strings.Builder
		for _, res := range resp.Data {
			text.WriteString(res.Title)
			text.WriteString("\n")
			text.WriteString(res.Description)
			text.WriteString("\n")
			text.WriteString(res.Content)
			text.WriteString("\n")
		}

		for i, addr := range ExtractAddresses(text.String(), r.opts.MaxPerSite) {
			out = append(out, AddressCandidate{Text: addr, Site: site, Rank: i})
		}
	}
	return out
}

// stagePlaces queries the commercial place search and takes the first
// boundary-valid candidate.
func (r *Resolver) stagePlaces(ctx context.Context, cand model.POICandidate, log *zap.Logger) (float64, float64, bool, error) {
	resp, err := resilience.DoVal(ctx, r.retryConfig("googleplaces", "findplace"), func(ctx context.Context) (*googleplaces.FindPlaceResponse, error) {
		if err := r.quota.Acquire(ctx, "googleplaces"); err != nil {
			return nil, err
		}
		return r.places.FindPlace(ctx, cand.Name+" "+cand.City)
	})
	if err != nil {
		log.Debug("place search failed", zap.Error(err))
		return 0, 0, false, nil
	}

	for _, c := range resp.Candidates {
		loc := c.Geometry.Location
		ok, err := r.boundary.Contains(ctx, loc.Lat, loc.Lng)
		if err != nil {
			return 0, 0, false, err
		}
		if ok {
			return loc.Lat, loc.Lng, true, nil
		}
		log.Debug("place search hit outside boundary", zap.String("match", c.Name))
	}
	return 0, 0, false, nil
}

// stageOpen free-text geocodes the full candidate description.
func (r *Resolver) stageOpen(ctx context.Context, cand model.POICandidate, log *zap.Logger) (float64, float64, bool, error) {
	query := joinNonEmpty(cand.Name, cand.City, cand.Province, cand.Country)
	places, err := r.geocodeQuery(ctx, query)
	if err != nil {
		log.Debug("open geocoding failed", zap.Error(err))
		return 0, 0, false, nil
	}
	return r.firstInBoundary(ctx, places, log)
}

// geocodeAddress geocodes a street address, scoping it to the candidate's
// city, and returns the first boundary-valid result.
func (r *Resolver) geocodeAddress(ctx context.Context, address string, cand model.POICandidate, log *zap.Logger) (float64, float64, bool, error) {
	query := address
	if cand.City != "" && !strings.Contains(strings.ToLower(address), strings.ToLower(cand.City)) {
		query = joinNonEmpty(address, cand.City, cand.Province, cand.Country)
	}

	places, err := r.geocodeQuery(ctx, query)
	if err != nil {
		log.Debug("address geocoding failed", zap.String("address", address), zap.Error(err))
		return 0, 0, false, nil
	}
	return r.firstInBoundary(ctx, places, log)
}

// geocodeQuery runs a geocoder search through the response cache.
func (r *Resolver) geocodeQuery(ctx context.Context, query string) ([]nominatim.Place, error) {
	if payload, hit := r.cache.Get(query); hit {
		if places, err := decodePlaces(payload); err == nil {
			return places, nil
		}
	}

	places, err := resilience.DoVal(ctx, r.retryConfig("nominatim", "search"), func(ctx context.Context) ([]nominatim.Place, error) {
		if err := r.quota.Acquire(ctx, "nominatim"); err != nil {
			return nil, err
		}
		return r.geocoder.Search(ctx, query, 3)
	})
	if err != nil {
		return nil, err
	}

	if payload, err := encodePlaces(places); err == nil {
		r.cache.Put(query, payload)
	}
	return places, nil
}

func (r *Resolver) firstInBoundary(ctx context.Context, places []nominatim.Place, log *zap.Logger) (float64, float64, bool, error) {
	for _, p := range places {
		ok, err := r.boundary.Contains(ctx, p.Lat, p.Lng)
		if err != nil {
			return 0, 0, false, err
		}
		if ok {
			return p.Lat, p.Lng, true, nil
		}
		log.Debug("geocoder result outside boundary", zap.String("match", p.DisplayName))
	}
	return 0, 0, false, nil
}

func (r *Resolver) retryConfig(provider, operation string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(provider, operation)
	return cfg
}

func buildPOI(cand model.POICandidate, lat, lng float64, resolvedBy string) model.POI {
	return model.POI{
		Name:         cand.Name,
		Lat:          lat,
		Lng:          lng,
		SourceType:   cand.SourceType,
		Radius:       model.DisplayRadius(cand.SourceType),
		ResolvedBy:   resolvedBy,
		CreationDate: cand.CreationDate,
	}
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, ", ")
}
