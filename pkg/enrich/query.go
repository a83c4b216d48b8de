package enrich

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"poiatlas/pkg/geo"
)

// Approx is the caller's approximate knowledge of a POI. Any field may be absent.
type Approx struct {
	Name string   `json:"name,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// Query is the input of one enrichment.
type Query struct {
	WikidataID string           `json:"wikidata,omitempty"`
	Wikipedia  string           `json:"wikipedia,omitempty"` // "<lang>:<Title>"
	OSMID      string           `json:"osmId,omitempty"`     // "<type>/<id>"
	SIPAID     string           `json:"sipaId,omitempty"`
	SIPAURL    string           `json:"sipaUrl,omitempty"`
	Approx     Approx           `json:"approx"`
	Feature    *geojson.Feature `json:"feature,omitempty"`
	Category   string           `json:"category,omitempty"`
}

// Name returns the approximate name, falling back to the feature's name.
func (q *Query) Name() string {
	if n := strings.TrimSpace(q.Approx.Name); n != "" {
		return n
	}
	return geo.FeatureName(q.Feature)
}

// Point returns the approximate coordinates, falling back to the feature geometry.
func (q *Query) Point() *geo.Point {
	if q.Approx.Lat != nil && q.Approx.Lon != nil {
		p := geo.Point{Lat: *q.Approx.Lat, Lon: *q.Approx.Lon}
		if p.Valid() {
			return &p
		}
	}
	if p, ok := geo.FeatureCenter(q.Feature); ok {
		return &p
	}
	return nil
}

// CategoryName returns the caller category, falling back to the feature's category tag.
func (q *Query) CategoryName() string {
	if c := strings.TrimSpace(q.Category); c != "" {
		return c
	}
	return geo.FeatureTag(q.Feature, "category")
}

// hasIdentifiers reports whether q carries any provider identifier.
func (q *Query) hasIdentifiers() bool {
	return q.WikidataID != "" || q.Wikipedia != "" || q.OSMID != "" || q.SIPAID != "" || q.SIPAURL != ""
}

// featureTags flattens the feature properties into OSM-style string tags.
func (q *Query) featureTags() map[string]string {
	if q.Feature == nil || len(q.Feature.Properties) == 0 {
		return nil
	}
	tags := make(map[string]string, len(q.Feature.Properties))
	for k, v := range q.Feature.Properties {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case float64:
			tags[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool, int, int64:
			tags[k] = fmt.Sprint(val)
		}
	}
	return tags
}
