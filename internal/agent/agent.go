// Package agent implements the source agents that discover POI candidates:
// community discussion, news and events, and municipal service feeds.
package agent

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aroundme-app/aroundme/internal/model"
	"github.com/aroundme-app/aroundme/internal/resolve"
)

// Location is the target of a discovery run.
type Location struct {
	City     string
	Province string
	Country  string
}

// Agent discovers POIs for one source category. Discover returns the POIs it
// could find; per-candidate failures are absorbed, and the error is non-nil
// only for configuration failures (an unresolvable city boundary).
type Agent interface {
	Name() string
	Discover(ctx context.Context, loc Location) ([]model.POI, error)
}

// resolveAll resolves candidates concurrently, bounded by maxConcurrent, and
// returns the resolved POIs in the candidates' original order. Invalid
// candidates are dropped and logged; unresolvable ones are skipped.
func resolveAll(ctx context.Context, resolver *resolve.Resolver, candidates []model.POICandidate, maxConcurrent int) ([]model.POI, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	results := make([]*model.POI, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, cand := range candidates {
		if err := cand.Validate(); err != nil {
			zap.L().Debug("dropping invalid candidate",
				zap.String("name", cand.Name),
				zap.Error(err),
			)
			continue
		}

		g.Go(func() error {
			poi, ok, err := resolver.Resolve(gctx, cand)
			if err != nil {
				return err
			}
			if ok {
				results[i] = &poi
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pois := make([]model.POI, 0, len(candidates))
	for _, p := range results {
		if p != nil {
			pois = append(pois, *p)
		}
	}
	return pois, nil
}
