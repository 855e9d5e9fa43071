package resolve

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/pkg/mapbox"
)

// ErrUnknownBoundary indicates the requested city could not be resolved to
// any boundary descriptor. This is a configuration error, not a data error:
// it propagates to the caller instead of degrading to an empty result.
var ErrUnknownBoundary = errors.New("resolve: unknown city boundary")

const earthRadiusKM = 6371.0

// Validator answers whether a coordinate lies inside the target city.
// The boundary descriptor is resolved once, on first use, and cached for the
// lifetime of the validator; create one validator per pipeline run.
type Validator struct {
	mapbox      mapbox.Client
	polygonFile string
	radiusKM    float64

	city     string
	province string
	country  string

	once     sync.Once
	resolved error
	boundary boundary
}

// boundary is the resolved descriptor, in precedence order: polygon when
// geometry is set, else bbox when hasBBox, else center + radius.
type boundary struct {
	geometry geom.T

	hasBBox bool
	bbox    [4]float64 // minLng, minLat, maxLng, maxLat

	centerLat float64
	centerLng float64
	radiusKM  float64
}

// NewValidator creates a validator for one city. polygonFile may be empty;
// radiusKM is the fallback radius when no polygon or bbox is available.
func NewValidator(mb mapbox.Client, city, province, country, polygonFile string, radiusKM float64) *Validator {
	return &Validator{
		mapbox:      mb,
		polygonFile: polygonFile,
		radiusKM:    radiusKM,
		city:        city,
		province:    province,
		country:     country,
	}
}

// Contains reports whether the coordinate lies inside the city boundary.
// The first call resolves the boundary descriptor; an unresolvable city
// returns ErrUnknownBoundary on every call.
func (v *Validator) Contains(ctx context.Context, lat, lng float64) (bool, error) {
	v.once.Do(func() {
		v.resolved = v.resolve(ctx)
	})
	if v.resolved != nil {
		return false, v.resolved
	}

	b := v.boundary
	switch {
	case b.geometry != nil:
		return geometryContains(b.geometry, lng, lat), nil
	case b.hasBBox:
		return lng >= b.bbox[0] && lng <= b.bbox[2] && lat >= b.bbox[1] && lat <= b.bbox[3], nil
	default:
		return haversineKM(lat, lng, b.centerLat, b.centerLng) <= b.radiusKM, nil
	}
}

// City returns the city name this validator was built for.
func (v *Validator) City() string {
	return v.city
}

func (v *Validator) resolve(ctx context.Context) error {
	if v.city == "" {
		return eris.Wrap(ErrUnknownBoundary, "empty city name")
	}

	if v.polygonFile != "" {
		g, err := loadPolygon(v.polygonFile)
		if err != nil {
			zap.L().Warn("boundary polygon file unusable, falling back to place lookup",
				zap.String("file", v.polygonFile),
				zap.Error(err),
			)
		} else {
			v.boundary = boundary{geometry: g}
			return nil
		}
	}

	query := v.city
	if v.province != "" {
		query += ", " + v.province
	}
	if v.country != "" {
		query += ", " + v.country
	}

	place, err := v.mapbox.GetPlace(ctx, query)
	if err != nil {
		return eris.Wrapf(ErrUnknownBoundary, "place lookup for %q failed: %v", query, err)
	}
	if place == nil {
		return eris.Wrapf(ErrUnknownBoundary, "no place feature for %q", query)
	}

	if place.HasBBox {
		v.boundary = boundary{hasBBox: true, bbox: place.BBox}
		return nil
	}
	v.boundary = boundary{
		centerLat: place.CenterLat,
		centerLng: place.CenterLng,
		radiusKM:  v.radiusKM,
	}
	return nil
}

// loadPolygon reads a GeoJSON file holding the city boundary. Accepts a bare
// geometry, a Feature, or a FeatureCollection (first feature wins).
func loadPolygon(path string) (geom.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read polygon file")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err == nil && len(fc.Features) > 0 && fc.Features[0].Geometry != nil {
		return fc.Features[0].Geometry, nil
	}

	var f geojson.Feature
	if err := f.UnmarshalJSON(data); err == nil && f.Geometry != nil {
		return f.Geometry, nil
	}

	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "decode geojson")
	}
	return g, nil
}

func geometryContains(g geom.T, lng, lat float64) bool {
	coord := geom.Coord{lng, lat}
	switch p := g.(type) {
	case *geom.Polygon:
		return polygonContains(p, coord)
	case *geom.MultiPolygon:
		for i := 0; i < p.NumPolygons(); i++ {
			if polygonContains(p.Polygon(i), coord) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func polygonContains(p *geom.Polygon, coord geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), coord, p.LinearRing(0).FlatCoords()) {
		return false
	}
	// Holes.
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), coord, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
