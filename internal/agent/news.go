package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/model"
	"github.com/aroundme-app/aroundme/internal/resolve"
	"github.com/aroundme-app/aroundme/pkg/eventregistry"
)

var newsQueries = []string{
	"%s new restaurant opening",
	"%s festival",
	"%s new park",
	"%s grand opening",
	"%s things to do",
}

// Keyword lists for relevance scoring. Lifestyle terms promote an article,
// business/financial terms demote it; articles scoring zero or below are
// dropped.
var (
	lifestyleKeywords = []string{
		"restaurant", "cafe", "coffee", "bar", "brewery", "bakery",
		"festival", "concert", "event", "exhibit", "museum", "gallery",
		"park", "trail", "market", "shop", "boutique", "opening",
		"food", "patio", "venue",
	}
	businessKeywords = []string{
		"stock", "shares", "earnings", "quarterly", "merger",
		"acquisition", "lawsuit", "ipo", "investors", "layoffs",
	}
	eventKeywords = []string{
		"festival", "concert", "parade", "fair", "exhibit", "show",
	}
)

// NewsAgent discovers POIs from recent news coverage of the city. Articles
// carrying annotated location coordinates short-circuit geocoding; the rest
// resolve by a place name extracted from the article text.
type NewsAgent struct {
	news          eventregistry.Client
	llm           llm.Service
	resolver      *resolve.Resolver
	articleCount  int
	maxCandidates int
	maxConcurrent int
}

// NewNewsAgent wires the news/events agent.
func NewNewsAgent(news eventregistry.Client, llmSvc llm.Service, resolver *resolve.Resolver, articleCount, maxCandidates, maxConcurrent int) *NewsAgent {
	if articleCount <= 0 {
		articleCount = 25
	}
	if maxCandidates <= 0 {
		maxCandidates = 8
	}
	return &NewsAgent{
		news:          news,
		llm:           llmSvc,
		resolver:      resolver,
		articleCount:  articleCount,
		maxCandidates: maxCandidates,
		maxConcurrent: maxConcurrent,
	}
}

func (a *NewsAgent) Name() string { return "news" }

func (a *NewsAgent) Discover(ctx context.Context, loc Location) ([]model.POI, error) {
	log := zap.L().With(zap.String("agent", a.Name()), zap.String("city", loc.City))

	articles := a.fetchArticles(ctx, loc, log)
	if len(articles) == 0 {
		log.Info("no relevant articles found")
		return nil, nil
	}

	candidates := a.buildCandidates(ctx, articles, loc, log)
	pois, err := resolveAll(ctx, a.resolver, candidates, a.maxConcurrent)
	if err != nil {
		return nil, err
	}

	// Summaries come from the article the place was found in.
	contextByName := make(map[string]string, len(candidates))
	for _, c := range candidates {
		contextByName[c.Name] = c.RawText
	}
	for i := range pois {
		pois[i].Summary = a.summarize(ctx, pois[i].Name, contextByName[pois[i].Name], log)
	}

	log.Info("news discovery finished",
		zap.Int("articles", len(articles)),
		zap.Int("candidates", len(candidates)),
		zap.Int("resolved", len(pois)),
	)
	return pois, nil
}

// fetchArticles runs the query set, deduplicates by URL, and keeps only
// articles that pass the relevance filter.
func (a *NewsAgent) fetchArticles(ctx context.Context, loc Location, log *zap.Logger) []eventregistry.Article {
	seenURL := make(map[string]struct{})
	var kept []eventregistry.Article

	for _, tpl := range newsQueries {
		if ctx.Err() != nil {
			break
		}
		query := fmt.Sprintf(tpl, loc.City)

		articles, err := a.news.GetArticles(ctx, eventregistry.ArticlesRequest{
			Keyword: query,
			Count:   a.articleCount,
		})
		if err != nil {
			log.Warn("article search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		for _, art := range articles {
			if art.URL == "" {
				continue
			}
			if _, dup := seenURL[art.URL]; dup {
				continue
			}
			seenURL[art.URL] = struct{}{}

			if relevanceScore(art) <= 0 {
				continue
			}
			kept = append(kept, art)
		}
	}
	return kept
}

func (a *NewsAgent) buildCandidates(ctx context.Context, articles []eventregistry.Article, loc Location, log *zap.Logger) []model.POICandidate {
	seen := make(map[string]struct{})
	var candidates []model.POICandidate

	for _, art := range articles {
		if len(candidates) >= a.maxCandidates {
			break
		}

		cand := model.POICandidate{
			SourceType: classifyArticle(art),
			RawText:    articleContext(art),
			City:       loc.City,
			Province:   loc.Province,
			Country:    loc.Country,
		}

		// An annotated location entity with coordinates skips geocoding
		// entirely; the boundary check still applies downstream.
		if ent, ok := bestEntity(art, loc.City); ok {
			cand.Name = ent.Name
			if ent.HasCoord() {
				cand.Lat = *ent.Lat
				cand.Lng = *ent.Lng
				cand.HasCoord = true
			}
		} else {
			name, ok := a.extractPlaceName(ctx, art, loc.City, log)
			if !ok {
				continue
			}
			cand.Name = name
		}

		key := strings.ToLower(strings.TrimSpace(cand.Name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, cand)
	}
	return candidates
}

// articleContext is the headline plus a body excerpt, the grounding text for
// extraction and summaries.
func articleContext(art eventregistry.Article) string {
	body := art.Body
	if len(body) > 500 {
		body = body[:500]
	}
	return strings.TrimSpace(art.Title + "\n\n" + body)
}

// summarize builds the POI summary from the article context, falling back to
// the headline when the model is unavailable.
func (a *NewsAgent) summarize(ctx context.Context, name, contextText string, log *zap.Logger) string {
	if contextText == "" {
		return ""
	}
	summary, err := a.llm.Summarize(ctx, name, contextText)
	if err != nil {
		log.Debug("summary generation failed", zap.String("name", name), zap.Error(err))
		headline, _, _ := strings.Cut(contextText, "\n")
		return strings.TrimSpace(headline)
	}
	return summary
}

// bestEntity returns the first location entity that names something more
// specific than the city itself.
func bestEntity(art eventregistry.Article, city string) (eventregistry.LocationEntity, bool) {
	for _, ent := range art.Entities.Locations {
		if ent.Name == "" || strings.EqualFold(ent.Name, city) {
			continue
		}
		return ent, true
	}
	return eventregistry.LocationEntity{}, false
}

// extractPlaceName asks the model for the most specific place the article is
// about.
func (a *NewsAgent) extractPlaceName(ctx context.Context, art eventregistry.Article, city string, log *zap.Logger) (string, bool) {
	body := art.Body
	if len(body) > 2000 {
		body = body[:2000]
	}

	places, err := a.llm.ExtractPlaces(ctx, art.Title+"\n\n"+body, city)
	if err != nil {
		log.Debug("article place extraction failed", zap.String("url", art.URL), zap.Error(err))
		return "", false
	}
	if len(places) == 0 {
		return "", false
	}
	return places[0].Name, true
}

func relevanceScore(art eventregistry.Article) int {
	text := strings.ToLower(art.Title + " " + art.Body)
	score := 0
	for _, kw := range lifestyleKeywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	for _, kw := range businessKeywords {
		if strings.Contains(text, kw) {
			score--
		}
	}
	return score
}

// classifyArticle splits event coverage from general news by title keywords.
func classifyArticle(art eventregistry.Article) model.SourceType {
	title := strings.ToLower(art.Title)
	for _, kw := range eventKeywords {
		if strings.Contains(title, kw) {
			return model.SourceEvent
		}
	}
	return model.SourceNews
}
