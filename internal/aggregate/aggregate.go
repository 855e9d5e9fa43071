// Package aggregate merges the per-agent POI lists into one deduplicated
// result set.
package aggregate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/aroundme-app/aroundme/internal/model"
)

// DefaultResolution is the H3 resolution for the dedup bucket. Resolution 10
// hexagons have roughly a 65 m edge, so the same venue reported by two
// sources with slightly different coordinates lands in one bucket.
const DefaultResolution = 10

// Aggregator deduplicates POIs by normalized name plus coarse coordinate
// bucket. The first occurrence of a key wins; insertion order is preserved.
type Aggregator struct {
	resolution int
}

// New creates an aggregator with the given H3 resolution.
func New(resolution int) *Aggregator {
	if resolution <= 0 || resolution > 15 {
		resolution = DefaultResolution
	}
	return &Aggregator{resolution: resolution}
}

// Merge combines the groups in order, dropping duplicates and anything with
// an out-of-range coordinate.
func (a *Aggregator) Merge(groups ...[]model.POI) []model.POI {
	seen := make(map[string]struct{})
	var out []model.POI

	for _, group := range groups {
		for _, poi := range group {
			if !poi.InRange() {
				zap.L().Warn("dropping poi with out-of-range coordinate",
					zap.String("name", poi.Name),
					zap.Float64("lat", poi.Lat),
					zap.Float64("lng", poi.Lng),
				)
				continue
			}

			key := a.dedupKey(poi)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if poi.Radius <= 0 {
				poi.Radius = model.DisplayRadius(poi.SourceType)
			}
			out = append(out, poi)
		}
	}
	return out
}

func (a *Aggregator) dedupKey(poi model.POI) string {
	return NormalizeName(poi.Name) + "|" + a.cellKey(poi.Lat, poi.Lng)
}

func (a *Aggregator) cellKey(lat, lng float64) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), a.resolution)
	if err != nil {
		// Degenerate coordinates still need a stable bucket.
		return fmt.Sprintf("%.3f:%.3f", lat, lng)
	}
	return cell.String()
}

var nameTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName lowercases a POI name, strips diacritics, and collapses
// whitespace, so "Café  Olimpico" and "cafe olimpico" compare equal.
func NormalizeName(name string) string {
	stripped, _, err := transform.String(nameTransformer, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
