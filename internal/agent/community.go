package agent

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/model"
	"github.com/aroundme-app/aroundme/internal/resolve"
	"github.com/aroundme-app/aroundme/pkg/jina"
)

// Search phrasings rotated across runs so repeated runs for the same city
// surface different discussion threads.
var communitySearchTerms = []string{
	"hidden gems %s",
	"cool spots %s",
	"best places to visit %s",
	"underrated places %s",
	"local favorites %s",
	"where do locals hang out %s",
}

const (
	communityTermsPerRun  = 2
	communityPostsPerTerm = 3
)

var communityTermCursor atomic.Uint64

// CommunityAgent mines community discussion threads for place
// recommendations, extracts the mentioned places, and resolves them.
type CommunityAgent struct {
	reader        jina.Client
	llm           llm.Service
	resolver      *resolve.Resolver
	maxCandidates int
	maxConcurrent int
}

// NewCommunityAgent wires the community-discussion agent.
func NewCommunityAgent(reader jina.Client, llmSvc llm.Service, resolver *resolve.Resolver, maxCandidates, maxConcurrent int) *CommunityAgent {
	if maxCandidates <= 0 {
		maxCandidates = 8
	}
	return &CommunityAgent{
		reader:        reader,
		llm:           llmSvc,
		resolver:      resolver,
		maxCandidates: maxCandidates,
		maxConcurrent: maxConcurrent,
	}
}

func (a *CommunityAgent) Name() string { return "community" }

// Discover searches discussion threads about the city, extracts mentioned
// places, resolves them, and attaches a summary grounded in the thread text.
func (a *CommunityAgent) Discover(ctx context.Context, loc Location) ([]model.POI, error) {
	log := zap.L().With(zap.String("agent", a.Name()), zap.String("city", loc.City))

	candidates := a.collectCandidates(ctx, loc, log)
	if len(candidates) == 0 {
		log.Info("no community candidates found")
		return nil, nil
	}

	pois, err := resolveAll(ctx, a.resolver, candidates, a.maxConcurrent)
	if err != nil {
		return nil, err
	}

	// Summaries come from the discussion context the place was found in.
	contextByName := make(map[string]string, len(candidates))
	for _, c := range candidates {
		contextByName[c.Name] = c.RawText
	}
	for i := range pois {
		pois[i].Summary = a.summarize(ctx, pois[i].Name, contextByName[pois[i].Name], log)
	}

	log.Info("community discovery finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("resolved", len(pois)),
	)
	return pois, nil
}

func (a *CommunityAgent) collectCandidates(ctx context.Context, loc Location, log *zap.Logger) []model.POICandidate {
	seen := make(map[string]struct{})
	var candidates []model.POICandidate

	for _, term := range a.searchTerms(loc.City) {
		if ctx.Err() != nil || len(candidates) >= a.maxCandidates {
			break
		}

		resp, err := a.reader.Search(ctx, term, jina.WithSiteFilter("reddit.com"))
		if err != nil {
			log.Warn("discussion search failed", zap.String("term", term), zap.Error(err))
			continue
		}

		posts := resp.Data
		if len(posts) > communityPostsPerTerm {
			posts = posts[:communityPostsPerTerm]
		}

		for _, post := range posts {
			text := post.Content
			if text == "" {
				read, err := a.reader.Read(ctx, post.URL)
				if err != nil {
					log.Debug("thread fetch failed", zap.String("url", post.URL), zap.Error(err))
					continue
				}
				text = read.Data.Content
			}

			places, err := a.llm.ExtractPlaces(ctx, text, loc.City)
			if err != nil {
				log.Warn("place extraction failed", zap.String("url", post.URL), zap.Error(err))
				continue
			}

			for _, p := range places {
				key := strings.ToLower(strings.TrimSpace(p.Name))
				if key == "" {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				candidates = append(candidates, model.POICandidate{
					Name:       p.Name,
					SourceType: model.SourceCommunity,
					RawText:    p.Context,
					City:       loc.City,
					Province:   loc.Province,
					Country:    loc.Country,
				})
				if len(candidates) >= a.maxCandidates {
					return candidates
				}
			}
		}
	}
	return candidates
}

// searchTerms returns this run's slice of the rotating term list.
func (a *CommunityAgent) searchTerms(city string) []string {
	start := communityTermCursor.Add(communityTermsPerRun) - communityTermsPerRun

	terms := make([]string, 0, communityTermsPerRun)
	for i := 0; i < communityTermsPerRun; i++ {
		tpl := communitySearchTerms[(start+uint64(i))%uint64(len(communitySearchTerms))]
		terms = append(terms, strings.Replace(tpl, "%s", city, 1))
	}
	return terms
}

func (a *CommunityAgent) summarize(ctx context.Context, name, contextText string, log *zap.Logger) string {
	if contextText == "" {
		return ""
	}
	summary, err := a.llm.Summarize(ctx, name, contextText)
	if err != nil {
		log.Debug("summary generation failed", zap.String("name", name), zap.Error(err))
		// Fall back to the raw context, trimmed.
		if len(contextText) > 200 {
			contextText = contextText[:200]
		}
		return strings.TrimSpace(contextText)
	}
	return summary
}
