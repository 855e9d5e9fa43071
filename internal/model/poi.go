// Package model defines the records that flow through the discovery pipeline.
package model

import (
	"strings"
	"time"
)

// SourceType identifies which source agent produced a candidate.
type SourceType string

// Source types for POI candidates.
const (
	SourceCommunity SourceType = "community-discussion"
	SourceNews      SourceType = "news"
	SourceEvent     SourceType = "event"
	SourceMunicipal SourceType = "municipal-service"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceCommunity, SourceNews, SourceEvent, SourceMunicipal:
		return true
	}
	return false
}

// POICandidate is a place mention discovered by a source agent, not yet
// geocoded. Candidates are immutable once handed to the resolver; the
// resolver produces a new POI rather than mutating the candidate.
type POICandidate struct {
	Name         string
	SourceType   SourceType
	RawText      string // free-text context the mention came from
	City         string
	Province     string
	Country      string
	CreationDate *time.Time // municipal-service records only

	// Pre-known coordinate, common for municipal feeds. When HasCoord is
	// set the resolver skips its provider chain but still validates the
	// coordinate against the city boundary.
	Lat      float64
	Lng      float64
	HasCoord bool
}

// Validate reports whether the candidate carries the minimum required
// fields. Invalid candidates are dropped at the agent, never resolved.
func (c POICandidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.SourceType.Valid() {
		return ErrBadSourceType
	}
	return nil
}

// POI is a fully resolved, boundary-validated point of interest.
type POI struct {
	Name         string     `json:"name"`
	Lat          float64    `json:"lat"`
	Lng          float64    `json:"lng"`
	Summary      string     `json:"summary"`
	SourceType   SourceType `json:"type"`
	Radius       int        `json:"radius"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
}

// InRange reports whether the POI's coordinates are plausible WGS84 values.
func (p POI) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Resolution stage identifiers recorded in POI.ResolvedBy.
const (
	ResolvedProvided = "provided" // candidate arrived with a coordinate
	ResolvedDirect   = "direct"   // knowledge-graph lookup
	ResolvedRanked   = "ranked"   // site extraction + ranking + geocode
	ResolvedPlaces   = "places"   // commercial place search
	ResolvedOpen     = "open"     // open text geocoding
)

// defaultRadii maps each source type to its display radius hint in km.
var defaultRadii = map[SourceType]int{
	SourceCommunity: 20,
	SourceNews:      10,
	SourceEvent:     10,
	SourceMunicipal: 5,
}

// DisplayRadius returns the rendering radius hint for a source type.
func DisplayRadius(t SourceType) int {
	if r, ok := defaultRadii[t]; ok {
		return r
	}
	return 10
}
