package models

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSONPoint is a WGS84 point in GeoJSON form ([lng, lat]).
type GeoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewGeoJSONPoint builds a point from latitude and longitude, rejecting
// coordinates outside the WGS84 range.
func NewGeoJSONPoint(lat, lng float64) (*GeoJSONPoint, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("coordinates out of range: lat=%v lng=%v", lat, lng)
	}
	point := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)

	b, err := geojson.Marshal(point)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal point to GeoJSON: %w", err)
	}
	var out GeoJSONPoint
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON point: %w", err)
	}
	return &out, nil
}

// Geom converts the point back to a go-geom value.
func (g *GeoJSONPoint) Geom() (*geom.Point, error) {
	if g == nil || len(g.Coordinates) != 2 {
		return nil, fmt.Errorf("point has no coordinates")
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	var geometry geom.T
	if err := geojson.Unmarshal(b, &geometry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON: %w", err)
	}
	point, ok := geometry.(*geom.Point)
	if !ok {
		return nil, fmt.Errorf("geometry is not a Point")
	}
	return point, nil
}

// BoundingBox is the [minLng, minLat, maxLng, maxLat] extent of a set of
// school locations.
type BoundingBox struct {
	MinLng float64 `json:"minLng"`
	MinLat float64 `json:"minLat"`
	MaxLng float64 `json:"maxLng"`
	MaxLat float64 `json:"maxLat"`
}

// Extent computes the bounding box and its centre for the given points.
// It returns nil values when there are no points.
func Extent(points []*geom.Point) (*BoundingBox, *GeoJSONPoint) {
	if len(points) == 0 {
		return nil, nil
	}
	bounds := geom.NewBounds(geom.XY)
	for _, p := range points {
		bounds.Extend(p)
	}
	box := &BoundingBox{
		MinLng: round6(bounds.Min(0)),
		MinLat: round6(bounds.Min(1)),
		MaxLng: round6(bounds.Max(0)),
		MaxLat: round6(bounds.Max(1)),
	}
	centre, err := NewGeoJSONPoint((box.MinLat+box.MaxLat)/2, (box.MinLng+box.MaxLng)/2)
	if err != nil {
		return box, nil
	}
	centre.Coordinates = []float64{round6(centre.Coordinates[0]), round6(centre.Coordinates[1])}
	return box, centre
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
