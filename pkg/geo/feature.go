package geo

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureTag returns the first non-empty string property among keys.
func FeatureTag(f *geojson.Feature, keys ...string) string {
	if f == nil || f.Properties == nil {
		return ""
	}
	for _, k := range keys {
		if v := strings.TrimSpace(f.Properties.MustString(k, "")); v != "" {
			return v
		}
	}
	return ""
}

// FeatureName returns the display name of an OSM-style feature, preferring the Portuguese tag.
func FeatureName(f *geojson.Feature) string {
	return FeatureTag(f, "name:pt", "name")
}

// FeatureCenter returns a representative point of the feature geometry.
func FeatureCenter(f *geojson.Feature) (Point, bool) {
	if f == nil || f.Geometry == nil {
		return Point{}, false
	}
	var c orb.Point
	if p, ok := f.Geometry.(orb.Point); ok {
		c = p
	} else {
		c = f.Geometry.Bound().Center()
	}
	pt := Point{Lat: c.Lat(), Lon: c.Lon()}
	return pt, pt.Valid()
}
